// Package model provides the regression models that turn a feature vector
// into a raw fragility score: a trained linear model persisted as YAML, the
// analytic label formula, and a remote prediction endpoint.
package model

import (
	"context"
	"errors"

	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/synth"
)

var (
	// ErrSchemaMismatch means a model was trained on a different feature layout.
	ErrSchemaMismatch = errors.New("model feature schema does not match extractor")
	// ErrNoRows means there is nothing to train on.
	ErrNoRows = errors.New("no training rows")
)

// Predictor turns a feature vector into a raw score.
// Implementations are read-only after construction and safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, v feature.Vector) (float64, error)
}

// BatchPredictor scores many vectors in one call.
type BatchPredictor interface {
	Predictor
	PredictBatch(ctx context.Context, vs []feature.Vector) ([]float64, error)
}

// Formula predicts with the synthetic label formula.
type Formula struct{}

// Predict implements Predictor.
func (Formula) Predict(ctx context.Context, v feature.Vector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return synth.Label(v), nil
}

// Name identifies the predictor in logs.
func Name(p Predictor) string {
	switch p.(type) {
	case *Linear:
		return "linear"
	case *Remote:
		return "remote"
	case Formula, *Formula:
		return "formula"
	default:
		return "custom"
	}
}
