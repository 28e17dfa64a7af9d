// Package feature implements the fixed-length household feature vector shared
// by the synthetic dataset generator and the serving-time extractor. The field
// order declared here is the contract a trained model depends on.
package feature

import (
	"errors"
	"fmt"
	"math"
)

// Count is the number of fields in a Vector.
const Count = 10

// Field positions within a Vector.
const (
	NumMembers = iota
	NumEarners
	DependencyRatio
	IncomeStability
	AvgSupportStrength
	ExpenseRigidity
	MedicalRisk
	SinglePointFailure
	DependencyConcentration
	ShockAmplification
)

const (
	// ExpenseRigidityConstant is a heuristic, not derived from the household.
	ExpenseRigidityConstant = 0.6

	// MedicalRiskConstant is a heuristic, not derived from the household.
	MedicalRiskConstant = 0.4

	concentrationDivisor = 3.0

	// dependent-driven shock weights
	depConcentrationWeight = 0.4
	depMedicalWeight       = 0.3
	depExpenseWeight       = 0.3

	// all-earner shock weights
	earnerIncomeRiskWeight      = 0.4
	earnerInterdependencyWeight = 0.2
	earnerMedicalWeight         = 0.2
	earnerExpenseWeight         = 0.2
)

// ErrLength is returned when a slice does not hold exactly Count values.
var ErrLength = errors.New("invalid feature vector length")

// Names lists the field names in vector order.
var Names = [Count]string{
	"num_members",
	"num_earners",
	"dependency_ratio",
	"income_stability",
	"avg_support_strength",
	"expense_rigidity",
	"medical_risk",
	"single_point_failure",
	"dependency_concentration",
	"shock_amplification",
}

// Vector is an ordered household feature vector.
type Vector [Count]float64

// Slice returns the values as a slice in field order.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// Map returns the values keyed by field name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i, n := range Names {
		m[n] = v[i]
	}
	return m
}

// Get returns the value of the named field.
func (v Vector) Get(name string) (float64, bool) {
	i := Index(name)
	if i < 0 {
		return 0, false
	}
	return v[i], true
}

// Index returns the position of the named field or -1.
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// FromSlice builds a Vector from exactly Count values.
func FromSlice(vals []float64) (Vector, error) {
	var v Vector
	if len(vals) != Count {
		return v, fmt.Errorf("%w: got %d, want %d", ErrLength, len(vals), Count)
	}
	copy(v[:], vals)
	return v, nil
}

// FlooredEarners floors the earner count at 1.
func FlooredEarners(n int) int {
	return max(n, 1)
}

// Ratio returns dependents per earner using the floored earner count.
func Ratio(members, earners int) float64 {
	e := FlooredEarners(earners)
	return float64(members-e) / float64(e)
}

// SinglePointFailureFlag is 1 when the household relies on a single earner.
func SinglePointFailureFlag(earners int) float64 {
	if FlooredEarners(earners) == 1 {
		return 1
	}
	return 0
}

// Concentration scales the dependency ratio into [0,1]. The lower bound only
// matters for a graph without members, where the ratio goes negative.
func Concentration(ratio float64) float64 {
	return math.Max(0, math.Min(1.0, ratio/concentrationDivisor))
}

// DependentShock is the shock amplification of a household with dependents.
// The synthetic generator uses it for every row.
func DependentShock(concentration, medical, expense float64) float64 {
	return concentration*depConcentrationWeight +
		medical*depMedicalWeight +
		expense*depExpenseWeight
}

// EarnerShock is the shock amplification of an all-earner household.
func EarnerShock(stability, interdependency, medical, expense float64) float64 {
	return (1-stability)*earnerIncomeRiskWeight +
		interdependency*earnerInterdependencyWeight +
		medical*earnerMedicalWeight +
		expense*earnerExpenseWeight
}

// ToFixed rounds num to the given precision.
func ToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}
