package score

import (
	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/household"
)

const (
	highDependencyRatio = 2.0
	highShock           = 0.6

	diversifiedIncome   = 0.5
	highPrimaryRisk     = 0.7
	highVolatility      = 0.8
	lowAverageStability = 0.3

	resilientReason     = "Household structure shows strong financial resilience"
	noActionRecommended = "No immediate risk-reducing actions required"
)

// Explanation lists why a household scored the way it did and what would
// reduce its fragility.
type Explanation struct {
	Reasons         []string `json:"reasons" yaml:"reasons"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// Explain derives the explanation of g from its feature vector v. Income
// insights of members with income sources come first.
func Explain(g *household.Graph, v feature.Vector) *Explanation {
	reasons := incomeReasons(g)
	reasons = append(reasons, structuralReasons(v)...)
	if len(reasons) == 0 {
		reasons = append(reasons, resilientReason)
	}

	recs := make([]string, 0)
	if v[feature.SinglePointFailure] == 1 && hasSingleSourceEarner(g) {
		recs = append(recs, "Diversify income sources - consider secondary income streams")
	}
	recs = append(recs, structuralRecommendations(v)...)
	if len(recs) == 0 {
		recs = append(recs, noActionRecommended)
	}

	return &Explanation{
		Reasons:         reasons,
		Recommendations: recs,
	}
}

// Reasons lists the structural risk drivers present in v.
func Reasons(v feature.Vector) []string {
	list := structuralReasons(v)
	if len(list) == 0 {
		list = append(list, resilientReason)
	}
	return list
}

// Recommend lists actions addressing the drivers present in v.
func Recommend(v feature.Vector) []string {
	list := structuralRecommendations(v)
	if len(list) == 0 {
		list = append(list, noActionRecommended)
	}
	return list
}

// IncomeInsights describes the income profile of one member.
func IncomeInsights(p household.IncomeProfile) []string {
	list := make([]string, 0)
	if p.MultipleSources {
		switch {
		case p.Diversification < diversifiedIncome:
			list = append(list, "Risk reduced due to diversified income sources")
		case p.Diversification == diversifiedIncome:
			list = append(list, "Moderate income diversification from dual sources")
		}
	}
	if p.PrimaryRisk > highPrimaryRisk {
		list = append(list, "High fragility due to dependence on a single primary income")
	}
	if p.MaxVolatility > highVolatility {
		list = append(list, "High income volatility increases financial stress")
	}
	if p.AvgStability < lowAverageStability {
		list = append(list, "Low average income stability increases vulnerability")
	}
	return list
}

func incomeReasons(g *household.Graph) []string {
	list := make([]string, 0)
	if g == nil {
		return list
	}
	for _, m := range g.Members {
		if len(m.IncomeSources) > 0 {
			list = append(list, IncomeInsights(m.Income())...)
		}
	}
	return list
}

func hasSingleSourceEarner(g *household.Graph) bool {
	for _, e := range g.Earners() {
		if len(e.IncomeSources) <= 1 {
			return true
		}
	}
	return false
}

func structuralReasons(v feature.Vector) []string {
	list := make([]string, 0)
	if v[feature.SinglePointFailure] == 1 {
		list = append(list, "Single income source supports the household")
	}
	if v[feature.DependencyRatio] > highDependencyRatio {
		list = append(list, "High number of dependents per earner")
	}
	if v[feature.ShockAmplification] > highShock {
		list = append(list, "Expenses and medical risk amplify financial stress")
	}
	return list
}

func structuralRecommendations(v feature.Vector) []string {
	list := make([]string, 0)
	if v[feature.SinglePointFailure] == 1 {
		list = append(list, "Add a secondary income source")
	}
	if v[feature.DependencyRatio] > highDependencyRatio {
		list = append(list, "Reduce dependency burden")
	}
	if v[feature.ShockAmplification] > highShock {
		list = append(list, "Create emergency fund")
	}
	return list
}
