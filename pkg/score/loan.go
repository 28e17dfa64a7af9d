package score

import (
	"context"
	"fmt"

	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/risk"
)

const (
	loanHighScore      = 0.6
	loanMediumScore    = 0.3
	deepChain          = 3
	longChain          = 2
	criticalEarnerRate = 0.7
)

// LoanEvaluation is the lending view of a scored household.
type LoanEvaluation struct {
	LoanRisk      risk.Band     `json:"loan_risk" yaml:"loanRisk"`
	Suggestions   []string      `json:"suggestions" yaml:"suggestions"`
	ApplicantID   string        `json:"applicant_id,omitempty" yaml:"applicantId,omitempty"`
	ChainAnalysis ChainAnalysis `json:"chain_analysis" yaml:"chainAnalysis"`
}

// ChainAnalysis summarizes the dependency chains behind a loan decision.
type ChainAnalysis struct {
	HasChainRisk  bool              `json:"has_chain_risk" yaml:"hasChainRisk"`
	MaxChainDepth int               `json:"max_chain_depth" yaml:"maxChainDepth"`
	Chains        []household.Chain `json:"chain_details" yaml:"chainDetails"`
}

// EvaluateLoan scores g and grades the risk of lending to it.
func (s *Scorer) EvaluateLoan(ctx context.Context, g *household.Graph) (*Result, *LoanEvaluation, error) {
	res, err := s.Analyze(ctx, g)
	if err != nil {
		return nil, nil, err
	}
	m, err := household.ComputeMetrics(ctx, g)
	if err != nil {
		return nil, nil, fmt.Errorf("computing graph metrics: %w", err)
	}
	var applicant string
	if a, ok := g.Applicant(); ok {
		applicant = a.ID
	}
	return res, evaluateLoan(res, m, applicant), nil
}

// evaluateLoan follows the score alone for the loan risk: HIGH strictly above
// 0.6, MEDIUM from 0.3. Graph metrics only add suggestions, and only when the
// score is above 0.3.
func evaluateLoan(res *Result, m *household.Metrics, applicant string) *LoanEvaluation {
	if m == nil {
		m = &household.Metrics{}
	}
	s := res.FragilityScore
	concerning := s > loanMediumScore
	severe := s > loanHighScore

	e := &LoanEvaluation{
		LoanRisk:    risk.Low,
		Suggestions: make([]string, 0),
		ApplicantID: applicant,
		ChainAnalysis: ChainAnalysis{
			HasChainRisk:  m.HasChainRisk,
			MaxChainDepth: m.MaxChainDepth,
			Chains:        m.Chains,
		},
	}
	if e.ChainAnalysis.Chains == nil {
		e.ChainAnalysis.Chains = []household.Chain{}
	}

	switch {
	case severe:
		e.LoanRisk = risk.High
		e.suggest(
			"Household has high fragility. Recommend additional collateral or co-applicant.",
			"Reduce loan tenure to minimize exposure.",
		)
	case s >= loanMediumScore:
		e.LoanRisk = risk.Medium
		e.suggest(
			"Household has moderate fragility. Advise on income stability measures.",
			"Review budget for non-essential expenses to free up cash flow.",
			"Explore options to build a small emergency fund.",
		)
	default:
		e.suggest("Household shows good financial resilience. Proceed with standard loan terms.")
	}

	if res.Features.SinglePointFailure == 1 {
		e.suggest("Require income backup or guarantor")
	}

	if m.HasChainRisk && concerning {
		e.suggest(
			"Mitigate cascading dependency risk",
			"Ensure earners have emergency fund coverage",
		)
		for _, c := range m.Chains {
			if c.Depth > deepChain {
				e.suggest(fmt.Sprintf("Member %s has %d-level dependency chain - monitor closely", c.Earner, c.Depth))
			}
		}
	}

	if m.MaxChainDepth > longChain && concerning {
		e.suggest("Consider shorter loan period due to dependency chain depth")
	}

	if len(m.CriticalMembers) > 0 && m.NumEarners > 0 && concerning {
		rate := float64(len(m.CriticalMembers)) / float64(m.NumEarners)
		if rate > criticalEarnerRate {
			e.suggest("High concentration of critical earners - require additional security")
		}
	}

	return e
}

func (e *LoanEvaluation) suggest(list ...string) {
	e.Suggestions = append(e.Suggestions, list...)
}
