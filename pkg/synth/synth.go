// Package synth generates labeled synthetic households for offline training.
// Rows use the feature schema of the feature package; the label is an analytic
// formula that only knows the dependent-driven shock amplification.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/mchmarny/fragility/pkg/feature"
)

const (
	// DefaultSeed matches the seed the reference dataset was produced with.
	DefaultSeed uint64 = 42
	// DefaultRows is the reference dataset size.
	DefaultRows = 10000

	minMembers = 2
	maxMembers = 6
	maxEarners = 2

	stabilityMin = 0.3
	stabilityMax = 0.95
	strengthMin  = 0.4
	strengthMax  = 0.9
	rigidityMin  = 0.3
	rigidityMax  = 0.85
	medicalMin   = 0.0
	medicalMax   = 0.8

	// label weights
	concentrationWeight = 0.35
	shockWeight         = 0.30
	instabilityWeight   = 0.25
	singlePointWeight   = 0.10

	precision = 2
)

// Row is one labeled synthetic household.
type Row struct {
	Features       feature.Vector `json:"features" yaml:"features"`
	FragilityScore float64        `json:"fragility_score" yaml:"fragilityScore"`
}

// Generator draws synthetic households from a seeded source.
// It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator whose output is fully determined by seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed)),
	}
}

// Household draws a single labeled row.
func (g *Generator) Household() Row {
	members := minMembers + g.rng.IntN(maxMembers-minMembers+1)
	earners := 1 + g.rng.IntN(min(maxEarners, members))
	dependents := members - earners

	var v feature.Vector
	v[feature.NumMembers] = float64(members)
	v[feature.NumEarners] = float64(earners)
	v[feature.DependencyRatio] = round(float64(dependents) / float64(earners))

	v[feature.IncomeStability] = round(g.uniform(stabilityMin, stabilityMax))
	v[feature.AvgSupportStrength] = round(g.uniform(strengthMin, strengthMax))
	v[feature.ExpenseRigidity] = round(g.uniform(rigidityMin, rigidityMax))
	v[feature.MedicalRisk] = round(g.uniform(medicalMin, medicalMax))

	v[feature.SinglePointFailure] = feature.SinglePointFailureFlag(earners)
	v[feature.DependencyConcentration] = round(feature.Concentration(v[feature.DependencyRatio]))

	// the all-earner branch is never used here, see Label
	v[feature.ShockAmplification] = round(feature.DependentShock(
		v[feature.DependencyConcentration],
		v[feature.MedicalRisk],
		v[feature.ExpenseRigidity],
	))

	return Row{
		Features:       v,
		FragilityScore: Label(v),
	}
}

// Generate draws n rows.
func (g *Generator) Generate(n int) []Row {
	if n <= 0 {
		return []Row{}
	}
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = g.Household()
	}
	return rows
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

// Label is the ground-truth fragility formula the model learns to approximate.
// It reads shock amplification from the vector as is, so applied to a serving
// vector of an all-earner household it diverges from what the generator would
// have produced for the same structure.
func Label(v feature.Vector) float64 {
	score := v[feature.DependencyConcentration]*concentrationWeight +
		v[feature.ShockAmplification]*shockWeight +
		(1-v[feature.IncomeStability])*instabilityWeight +
		v[feature.SinglePointFailure]*singlePointWeight
	return round(math.Min(1.0, math.Max(0.0, score)))
}

func round(v float64) float64 {
	return feature.ToFixed(v, precision)
}
