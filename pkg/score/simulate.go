package score

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/household"
)

// Impact grades the change a simulated shock causes.
type Impact string

const (
	ImpactSevere   Impact = "SEVERE"
	ImpactModerate Impact = "MODERATE"
	ImpactLow      Impact = "LOW"
	ImpactMinimal  Impact = "MINIMAL"

	collapseScore    = 1.0
	severeAfterScore = 0.8
	severeChange     = 0.25
	moderateChange   = 0.1
	changePrecision  = 3
)

var shockDescriptions = map[string]string{
	household.ShockMemberLoss:    "Complete income loss - member becomes dependent",
	household.ShockJobLoss:       "Job loss scenario - disabled all job-type income",
	household.ShockFreelance:     "Freelance income shock - reduced freelance stability by 40%",
	household.ShockRentalVacancy: "Rental vacancy - increased rental income volatility to maximum",
}

// ErrMemberNotFound is returned when the simulated member is not in the household.
var ErrMemberNotFound = errors.New("member not found in household")

// Simulation compares a household before and after a shock.
type Simulation struct {
	Before           float64           `json:"before" yaml:"before"`
	After            float64           `json:"after" yaml:"after"`
	Impact           Impact            `json:"impact" yaml:"impact"`
	ShockDescription string            `json:"shock_description" yaml:"shockDescription"`
	Details          SimulationDetails `json:"details" yaml:"details"`
}

// SimulationDetails describes the shocked member and what remains.
type SimulationDetails struct {
	AffectedMember   string  `json:"affected_member" yaml:"affectedMember"`
	ShockType        string  `json:"shock_type" yaml:"shockType"`
	IsEarner         bool    `json:"is_earner" yaml:"isEarner"`
	IncomeStability  float64 `json:"income_stability" yaml:"incomeStability"`
	RemainingMembers int     `json:"remaining_members" yaml:"remainingMembers"`
	RemainingEarners int     `json:"remaining_earners" yaml:"remainingEarners"`
	ScoreChange      float64 `json:"score_change" yaml:"scoreChange"`
}

// Simulate scores g before and after the shock hits memberID. An empty shock
// is a member loss: the member loses all income. Income shocks only change
// the member's income sources of the matching type.
func (s *Scorer) Simulate(ctx context.Context, g *household.Graph, memberID, shock string) (*Simulation, error) {
	if shock == "" {
		shock = household.ShockMemberLoss
	}
	if _, ok := shockDescriptions[shock]; !ok {
		return nil, fmt.Errorf("%w: %q", household.ErrUnknownShock, shock)
	}

	member, ok := g.Member(memberID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, memberID)
	}

	shocked, err := applyShock(g, memberID, shock)
	if err != nil {
		return nil, err
	}

	before, err := s.Analyze(ctx, g)
	if err != nil {
		return nil, err
	}

	after, err := s.Analyze(ctx, shocked)
	if err != nil {
		return nil, err
	}

	remainingEarners := len(shocked.Earners())
	afterScore := after.FragilityScore
	if member.IsEarner() && remainingEarners == 0 {
		afterScore = collapseScore
	}

	change := afterScore - before.FragilityScore
	return &Simulation{
		Before:           before.FragilityScore,
		After:            afterScore,
		Impact:           gradeImpact(afterScore, change),
		ShockDescription: shockDescriptions[shock],
		Details: SimulationDetails{
			AffectedMember:   memberID,
			ShockType:        shock,
			IsEarner:         member.IsEarner(),
			IncomeStability:  member.Stability(),
			RemainingMembers: len(shocked.Members),
			RemainingEarners: remainingEarners,
			ScoreChange:      feature.ToFixed(change, changePrecision),
		},
	}, nil
}

func applyShock(g *household.Graph, memberID, shock string) (*household.Graph, error) {
	if shock == household.ShockMemberLoss {
		return g.WithMemberLoss(memberID), nil
	}
	return g.WithIncomeShock(memberID, shock)
}

func gradeImpact(after, change float64) Impact {
	switch {
	case after >= severeAfterScore || change >= severeChange:
		return ImpactSevere
	case change >= moderateChange:
		return ImpactModerate
	case change > 0:
		return ImpactLow
	default:
		return ImpactMinimal
	}
}
