package score

import (
	"context"
	"testing"

	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/model"
	"github.com/mchmarny/fragility/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainedMetrics() *household.Metrics {
	return &household.Metrics{
		NumMembers:      5,
		NumEarners:      1,
		CriticalMembers: []string{"e"},
		MaxChainDepth:   4,
		HasChainRisk:    true,
		Chains:          []household.Chain{{Earner: "e", Depth: 4, TotalDependents: 1}},
	}
}

func TestEvaluateLoan_Bands(t *testing.T) {
	tests := []struct {
		score float64
		want  risk.Band
	}{
		{0, risk.Low},
		{0.29, risk.Low},
		{0.3, risk.Medium},
		{0.6, risk.Medium},
		{0.61, risk.High},
	}
	for _, tt := range tests {
		e := evaluateLoan(&Result{FragilityScore: tt.score}, nil, "")
		assert.Equal(t, tt.want, e.LoanRisk, "score %v", tt.score)
		assert.NotEmpty(t, e.Suggestions)
		assert.NotNil(t, e.ChainAnalysis.Chains)
	}
}

func TestEvaluateLoan_ChainSuggestions(t *testing.T) {
	res := &Result{FragilityScore: 0.45, Features: Summary{SinglePointFailure: 1}}
	e := evaluateLoan(res, chainedMetrics(), "a")

	assert.Equal(t, risk.Medium, e.LoanRisk)
	assert.Equal(t, "a", e.ApplicantID)
	assert.Equal(t, []string{
		"Household has moderate fragility. Advise on income stability measures.",
		"Review budget for non-essential expenses to free up cash flow.",
		"Explore options to build a small emergency fund.",
		"Require income backup or guarantor",
		"Mitigate cascading dependency risk",
		"Ensure earners have emergency fund coverage",
		"Member e has 4-level dependency chain - monitor closely",
		"Consider shorter loan period due to dependency chain depth",
		"High concentration of critical earners - require additional security",
	}, e.Suggestions)
	assert.True(t, e.ChainAnalysis.HasChainRisk)
	assert.Equal(t, 4, e.ChainAnalysis.MaxChainDepth)
}

func TestEvaluateLoan_ChainsIgnoredWhenResilient(t *testing.T) {
	e := evaluateLoan(&Result{FragilityScore: 0.3}, chainedMetrics(), "")
	assert.Equal(t, risk.Medium, e.LoanRisk)
	assert.Len(t, e.Suggestions, 3)
	assert.Len(t, e.ChainAnalysis.Chains, 1)
}

func TestScorer_EvaluateLoan(t *testing.T) {
	g := singleEarnerHousehold()
	g.Members[0].IsApplicant = true

	s := newScorer(t, model.Formula{})
	res, e, err := s.EvaluateLoan(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, "e", e.ApplicantID)
	assert.Equal(t, 1, res.Features.SinglePointFailure)
	assert.Contains(t, e.Suggestions, "Require income backup or guarantor")

	_, _, err = newScorer(t, failingPredictor{}).EvaluateLoan(context.Background(), g)
	assert.Error(t, err)
}
