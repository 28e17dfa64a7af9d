package feature

import (
	"log/slog"

	"github.com/mchmarny/fragility/pkg/household"
)

// Extract computes the feature vector of g. It never fails: missing fields,
// unknown roles, and dangling edges resolve to their defaults.
func Extract(g *household.Graph) Vector {
	if g == nil {
		g = &household.Graph{}
	}

	var v Vector

	members := len(g.Members)
	earners := g.Earners()
	numEarners := FlooredEarners(len(earners))

	v[NumMembers] = float64(members)
	v[NumEarners] = float64(numEarners)
	v[DependencyRatio] = Ratio(members, len(earners))
	v[IncomeStability] = meanStability(earners)
	v[AvgSupportStrength] = meanStrength(g.Supports)
	v[ExpenseRigidity] = ExpenseRigidityConstant
	v[MedicalRisk] = MedicalRiskConstant
	v[SinglePointFailure] = SinglePointFailureFlag(len(earners))
	v[DependencyConcentration] = Concentration(v[DependencyRatio])

	if IsAllEarner(g) {
		v[ShockAmplification] = EarnerShock(
			v[IncomeStability],
			EarnerInterdependency(g),
			v[MedicalRisk],
			v[ExpenseRigidity],
		)
	} else {
		v[ShockAmplification] = DependentShock(
			v[DependencyConcentration],
			v[MedicalRisk],
			v[ExpenseRigidity],
		)
	}

	slog.Debug("features extracted",
		"members", members,
		"earners", len(earners),
		"all_earner", IsAllEarner(g),
		"shock", v[ShockAmplification])

	return v
}

// IsAllEarner reports whether every member earns and there is more than one
// member. Uses the floored earner count, same as the vector fields.
func IsAllEarner(g *household.Graph) bool {
	if g == nil {
		return false
	}
	members := len(g.Members)
	return members > 1 && members == FlooredEarners(len(g.Earners()))
}

// EarnerInterdependency is the share of support edges whose endpoints are
// both earners. Zero when there are no edges.
func EarnerInterdependency(g *household.Graph) float64 {
	if g == nil || len(g.Supports) == 0 {
		return 0
	}
	ids := g.EarnerIDs()
	var n int
	for _, s := range g.Supports {
		_, from := ids[s.From]
		_, to := ids[s.To]
		if from && to {
			n++
		}
	}
	return float64(n) / float64(max(1, len(g.Supports)))
}

func meanStability(earners []household.Member) float64 {
	if len(earners) == 0 {
		return household.DefaultStability
	}
	var sum float64
	for _, e := range earners {
		sum += e.Stability()
	}
	return sum / float64(len(earners))
}

func meanStrength(supports []household.Support) float64 {
	if len(supports) == 0 {
		return household.DefaultStrength
	}
	var sum float64
	for _, s := range supports {
		sum += s.Weight()
	}
	return sum / float64(len(supports))
}
