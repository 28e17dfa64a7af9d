package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/net"
)

// Remote calls a hosted prediction endpoint that accepts
// {"instances": [[...features]]} and answers {"predictions": [score...]}.
type Remote struct {
	endpoint string
	client   *http.Client
}

type remoteRequest struct {
	Instances [][]float64 `json:"instances"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
}

// NewRemote creates a remote predictor. When token is set every request
// carries it as a bearer token.
func NewRemote(ctx context.Context, endpoint, token string) (*Remote, error) {
	if endpoint == "" {
		return nil, errors.New("remote endpoint required")
	}

	r := &Remote{endpoint: endpoint}
	if token != "" {
		r.client = net.GetOAuthClient(ctx, token)
		return r, nil
	}

	c, err := net.GetHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}
	r.client = c
	return r, nil
}

// Predict implements Predictor.
func (r *Remote) Predict(ctx context.Context, v feature.Vector) (float64, error) {
	preds, err := r.PredictBatch(ctx, []feature.Vector{v})
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}

// PredictBatch implements BatchPredictor.
func (r *Remote) PredictBatch(ctx context.Context, vs []feature.Vector) ([]float64, error) {
	if len(vs) == 0 {
		return []float64{}, nil
	}

	req := remoteRequest{Instances: make([][]float64, len(vs))}
	for i, v := range vs {
		req.Instances[i] = v.Slice()
	}

	var resp remoteResponse
	if err := net.PostJSON(ctx, r.client, r.endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("remote prediction: %w", err)
	}

	if len(resp.Predictions) != len(vs) {
		return nil, fmt.Errorf("remote prediction: got %d predictions for %d instances",
			len(resp.Predictions), len(vs))
	}
	return resp.Predictions, nil
}
