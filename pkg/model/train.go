package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/synth"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultLambda is the ridge penalty. It must stay positive: in the
	// synthetic data single_point_failure is a linear function of num_earners.
	DefaultLambda = 0.01
	// DefaultTestFraction is the share of rows held out for evaluation.
	DefaultTestFraction = 0.2
	// DefaultSplitSeed drives the train/test shuffle.
	DefaultSplitSeed uint64 = 42
)

// TrainOptions tunes Train. Zero values use the defaults.
type TrainOptions struct {
	Lambda       float64
	TestFraction float64
	Seed         uint64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.Lambda <= 0 {
		o.Lambda = DefaultLambda
	}
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		o.TestFraction = DefaultTestFraction
	}
	if o.Seed == 0 {
		o.Seed = DefaultSplitSeed
	}
	return o
}

// Evaluation summarizes model quality on the held-out rows.
type Evaluation struct {
	TrainRows int     `yaml:"trainRows" json:"train_rows"`
	TestRows  int     `yaml:"testRows" json:"test_rows"`
	MAE       float64 `yaml:"mae" json:"mae"`
	Lambda    float64 `yaml:"lambda" json:"lambda"`
}

// Train fits a ridge regression on rows and evaluates it on a held-out split.
func Train(rows []synth.Row, opts TrainOptions) (*Linear, *Evaluation, error) {
	if len(rows) == 0 {
		return nil, nil, ErrNoRows
	}
	opts = opts.withDefaults()

	train, test := split(rows, opts.TestFraction, opts.Seed)
	slog.Debug("training split", "train", len(train), "test", len(test), "lambda", opts.Lambda)

	intercept, weights, err := fit(train, opts.Lambda)
	if err != nil {
		return nil, nil, err
	}

	m := &Linear{
		Version:   Version,
		Features:  slices.Clone(feature.Names[:]),
		Intercept: intercept,
		Weights:   weights,
		TrainedAt: time.Now().UTC(),
	}

	eval := &Evaluation{
		TrainRows: len(train),
		TestRows:  len(test),
		Lambda:    opts.Lambda,
	}
	eval.MAE = meanAbsoluteError(m, test)
	m.Evaluation = eval

	slog.Info("model trained", "rows", len(rows), "mae", fmt.Sprintf("%.4f", eval.MAE))
	return m, eval, nil
}

// split shuffles a copy of rows and holds out fraction of them. With fewer
// than two rows everything goes to training and the training rows are also
// used for evaluation.
func split(rows []synth.Row, fraction float64, seed uint64) (train, test []synth.Row) {
	shuffled := make([]synth.Row, len(rows))
	copy(shuffled, rows)

	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := int(math.Round(float64(len(shuffled)) * fraction))
	if len(shuffled) < 2 || n == 0 {
		return shuffled, shuffled
	}
	if n >= len(shuffled) {
		n = len(shuffled) - 1
	}
	return shuffled[n:], shuffled[:n]
}

// fit solves (X'X + lambda*D) w = X'y where D leaves the intercept unpenalized.
func fit(rows []synth.Row, lambda float64) (float64, []float64, error) {
	const p = feature.Count + 1

	data := make([]float64, 0, len(rows)*p)
	labels := make([]float64, len(rows))
	for i, r := range rows {
		data = append(data, 1)
		data = append(data, r.Features[:]...)
		labels[i] = r.FragilityScore
	}

	x := mat.NewDense(len(rows), p, data)
	y := mat.NewVecDense(len(rows), labels)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 1; i < p; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, nil, fmt.Errorf("solving normal equations: %w", err)
		}
		slog.Warn("ill-conditioned training data", "condition", float64(cond))
	}

	weights := make([]float64, feature.Count)
	for i := range weights {
		weights[i] = w.AtVec(i + 1)
	}
	return w.AtVec(0), weights, nil
}

func meanAbsoluteError(m *Linear, rows []synth.Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	errs := make([]float64, len(rows))
	for i, r := range rows {
		score := m.Intercept
		for j, w := range m.Weights {
			score += w * r.Features[j]
		}
		errs[i] = math.Abs(math.Min(1, math.Max(0, score)) - r.FragilityScore)
	}
	return stat.Mean(errs, nil)
}
