package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/mchmarny/fragility/pkg/feature"
	"gopkg.in/yaml.v3"
)

const (
	// Version is written into every saved model file.
	Version = "1.0.0"

	fileMode = 0600
)

// Linear is a ridge regression over the feature vector.
type Linear struct {
	Version    string      `yaml:"version" json:"version"`
	Features   []string    `yaml:"features" json:"features"`
	Intercept  float64     `yaml:"intercept" json:"intercept"`
	Weights    []float64   `yaml:"weights" json:"weights"`
	TrainedAt  time.Time   `yaml:"trainedAt" json:"trained_at"`
	Evaluation *Evaluation `yaml:"evaluation,omitempty" json:"evaluation,omitempty"`
}

// Predict implements Predictor. The result is clamped to [0,1].
func (m *Linear) Predict(ctx context.Context, v feature.Vector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(m.Weights) != feature.Count {
		return 0, fmt.Errorf("%w: %d weights", ErrSchemaMismatch, len(m.Weights))
	}

	score := m.Intercept
	for i, w := range m.Weights {
		score += w * v[i]
	}
	return math.Min(1, math.Max(0, score)), nil
}

// Validate checks the model was trained on the current feature layout.
func (m *Linear) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrSchemaMismatch)
	}
	if !slices.Equal(m.Features, feature.Names[:]) {
		return fmt.Errorf("%w: model features %v", ErrSchemaMismatch, m.Features)
	}
	if len(m.Weights) != feature.Count {
		return fmt.Errorf("%w: %d weights, want %d", ErrSchemaMismatch, len(m.Weights), feature.Count)
	}
	return nil
}

// Save writes the model to path as YAML.
func (m *Linear) Save(path string) error {
	if path == "" {
		return errors.New("model path required")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write model file %s: %w", path, err)
	}
	return nil
}

// Load reads a model saved with Save and rejects one trained on another
// feature layout.
func Load(path string) (*Linear, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model file %s: %w", path, err)
	}

	var m Linear
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("error unmarshalling model file %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
