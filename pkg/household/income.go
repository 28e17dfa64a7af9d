package household

import (
	"errors"
	"fmt"
	"math"
)

// Income source types.
const (
	SourceJob       = "job"
	SourceFreelance = "freelance"
	SourceRental    = "rental"
)

// Shocks applied to the income of a single member.
const (
	ShockMemberLoss    = "member_loss"
	ShockJobLoss       = "job_loss"
	ShockFreelance     = "freelance_shock"
	ShockRentalVacancy = "rental_vacancy"
)

const (
	// DefaultVolatility is used for an income source without volatility.
	DefaultVolatility = 0.5

	freelanceStabilityFactor = 0.6
	freelanceVolatilityBump  = 0.3
	rentalStabilityFactor    = 0.5
	maxVolatility            = 1.0
)

// ErrUnknownShock is returned for an unsupported shock type.
var ErrUnknownShock = errors.New("unknown shock type")

// IncomeSource is one income stream of a member.
type IncomeSource struct {
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	Stability  *float64 `json:"stability,omitempty" yaml:"stability,omitempty"`
	Volatility *float64 `json:"volatility,omitempty" yaml:"volatility,omitempty"`
	IsPrimary  bool     `json:"is_primary,omitempty" yaml:"isPrimary,omitempty"`
}

func (s IncomeSource) stability() float64 {
	if s.Stability == nil {
		return DefaultStability
	}
	return *s.Stability
}

func (s IncomeSource) volatility() float64 {
	if s.Volatility == nil {
		return DefaultVolatility
	}
	return *s.Volatility
}

// IncomeProfile aggregates the income sources of a member.
type IncomeProfile struct {
	AvgStability    float64 `json:"avg_income_stability" yaml:"avgIncomeStability"`
	Diversification float64 `json:"income_diversification" yaml:"incomeDiversification"`
	PrimaryRisk     float64 `json:"primary_income_risk" yaml:"primaryIncomeRisk"`
	MaxVolatility   float64 `json:"max_income_volatility" yaml:"maxIncomeVolatility"`
	MultipleSources bool    `json:"has_multiple_sources" yaml:"hasMultipleSources"`
	NumSources      int     `json:"num_income_sources" yaml:"numIncomeSources"`
}

// Income aggregates the member's income sources. A member without sources has
// one implicit source at its income stability, or none when that is zero.
//
// Diversification is 1/n: 1 for a single source, lower for more sources.
// The primary source is the one flagged primary, else the most stable one.
func (m Member) Income() IncomeProfile {
	if len(m.IncomeSources) == 0 {
		st := m.Stability()
		p := IncomeProfile{
			AvgStability:  st,
			PrimaryRisk:   1 - st,
			MaxVolatility: DefaultVolatility,
		}
		if st > 0 {
			p.NumSources = 1
		}
		return p
	}

	n := len(m.IncomeSources)
	primary, mostStable := -1, 0
	maxVol := 0.0
	for i, s := range m.IncomeSources {
		maxVol = math.Max(maxVol, s.volatility())
		if primary < 0 && s.IsPrimary {
			primary = i
		}
		if s.stability() > m.IncomeSources[mostStable].stability() {
			mostStable = i
		}
	}
	if primary < 0 {
		primary = mostStable
	}

	return IncomeProfile{
		AvgStability:    avgSourceStability(m.IncomeSources),
		Diversification: 1 / float64(n),
		PrimaryRisk:     1 - m.IncomeSources[primary].stability(),
		MaxVolatility:   maxVol,
		MultipleSources: n > 1,
		NumSources:      n,
	}
}

func avgSourceStability(sources []IncomeSource) float64 {
	if len(sources) == 0 {
		return DefaultStability
	}
	var sum float64
	for _, s := range sources {
		sum += s.stability()
	}
	return sum / float64(len(sources))
}

// ShockSources returns a copy of sources after the income shock. Sources of
// other types are unchanged.
func ShockSources(sources []IncomeSource, shock string) ([]IncomeSource, error) {
	if !IsIncomeShock(shock) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShock, shock)
	}
	out := make([]IncomeSource, len(sources))
	for i, s := range sources {
		switch {
		case shock == ShockJobLoss && s.Type == SourceJob:
			s.Stability = Float(0)
			s.Volatility = Float(maxVolatility)
		case shock == ShockFreelance && s.Type == SourceFreelance:
			s.Stability = Float(math.Max(0, s.stability()*freelanceStabilityFactor))
			s.Volatility = Float(math.Min(maxVolatility, s.volatility()+freelanceVolatilityBump))
		case shock == ShockRentalVacancy && s.Type == SourceRental:
			s.Stability = Float(math.Max(0, s.stability()*rentalStabilityFactor))
			s.Volatility = Float(maxVolatility)
		}
		out[i] = s
	}
	return out, nil
}

// IsIncomeShock reports whether shock targets income sources by type.
func IsIncomeShock(shock string) bool {
	switch shock {
	case ShockJobLoss, ShockFreelance, ShockRentalVacancy:
		return true
	default:
		return false
	}
}

// WithIncomeShock returns a copy of the graph where the income sources of the
// member identified by id went through the shock. A member without sources
// is unchanged.
func (g *Graph) WithIncomeShock(id, shock string) (*Graph, error) {
	if !IsIncomeShock(shock) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShock, shock)
	}
	out := g.clone()
	for i, m := range out.Members {
		if m.ID != id || len(m.IncomeSources) == 0 {
			continue
		}
		sources, err := ShockSources(m.IncomeSources, shock)
		if err != nil {
			return nil, err
		}
		out.Members[i].IncomeSources = sources
	}
	return out, nil
}
