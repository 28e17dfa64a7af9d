// Package score runs the serving pipeline: feature extraction, prediction, and
// risk band classification of a household.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/model"
	"github.com/mchmarny/fragility/pkg/risk"
	"golang.org/x/sync/errgroup"
)

const scorePrecision = 2

// Summary is the subset of features returned to callers.
type Summary struct {
	DependencyRatio    float64 `json:"dependency_ratio" yaml:"dependencyRatio"`
	SinglePointFailure int     `json:"single_point_failure" yaml:"singlePointFailure"`
	ShockAmplification float64 `json:"shock_amplification" yaml:"shockAmplification"`
}

// Result is the scoring outcome of one household.
type Result struct {
	FragilityScore float64   `json:"fragility_score" yaml:"fragilityScore"`
	Features       Summary   `json:"features" yaml:"features"`
	RiskBand       risk.Band `json:"risk_band" yaml:"riskBand"`

	vector feature.Vector
}

// Vector returns the full feature vector the result was computed from.
func (r *Result) Vector() feature.Vector {
	return r.vector
}

// Scorer holds the predictor loaded at startup. It has no mutable state and
// is safe for concurrent use.
type Scorer struct {
	predictor model.Predictor
	limit     int
}

// New creates a Scorer around p.
func New(p model.Predictor) (*Scorer, error) {
	if p == nil {
		return nil, errors.New("predictor required")
	}
	return &Scorer{
		predictor: p,
		limit:     runtime.GOMAXPROCS(0),
	}, nil
}

// Analyze scores a single household.
func (s *Scorer) Analyze(ctx context.Context, g *household.Graph) (*Result, error) {
	v := feature.Extract(g)
	raw, err := s.predictor.Predict(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("predicting fragility: %w", err)
	}
	return newResult(v, raw), nil
}

// AnalyzeBatch scores households keeping the input order. The first failure
// fails the whole batch.
func (s *Scorer) AnalyzeBatch(ctx context.Context, graphs []*household.Graph) ([]*Result, error) {
	results := make([]*Result, len(graphs))
	if len(graphs) == 0 {
		return results, nil
	}

	vectors := make([]feature.Vector, len(graphs))
	for i, g := range graphs {
		vectors[i] = feature.Extract(g)
	}

	if bp, ok := s.predictor.(model.BatchPredictor); ok {
		raw, err := bp.PredictBatch(ctx, vectors)
		if err != nil {
			return nil, fmt.Errorf("predicting fragility: %w", err)
		}
		if len(raw) != len(vectors) {
			return nil, fmt.Errorf("predictor returned %d scores for %d instances", len(raw), len(vectors))
		}
		for i, v := range vectors {
			results[i] = newResult(v, raw[i])
		}
		return results, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.limit)
	for i, v := range vectors {
		eg.Go(func() error {
			raw, err := s.predictor.Predict(ctx, v)
			if err != nil {
				return fmt.Errorf("predicting fragility of instance %d: %w", i, err)
			}
			results[i] = newResult(v, raw)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("batch scored", "instances", len(graphs))
	return results, nil
}

func newResult(v feature.Vector, raw float64) *Result {
	return &Result{
		FragilityScore: feature.ToFixed(raw, scorePrecision),
		Features: Summary{
			DependencyRatio:    v[feature.DependencyRatio],
			SinglePointFailure: int(v[feature.SinglePointFailure]),
			ShockAmplification: v[feature.ShockAmplification],
		},
		RiskBand: risk.Classify(raw),
		vector:   v,
	}
}
