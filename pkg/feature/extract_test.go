package feature

import (
	"testing"

	"github.com/mchmarny/fragility/pkg/household"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

func earner(id string, stability float64) household.Member {
	return household.Member{ID: id, Role: household.RoleEarner, IncomeStability: household.Float(stability)}
}

func dependent(id string) household.Member {
	return household.Member{ID: id, Role: household.RoleDependent}
}

func TestExtract_SingleEarnerScenario(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{earner("e", 0.7), dependent("d")},
		Supports: []household.Support{
			{From: "e", To: "d", Strength: household.Float(0.8)},
		},
	}

	v := Extract(g)
	assert.Equal(t, 2.0, v[NumMembers])
	assert.Equal(t, 1.0, v[NumEarners])
	assert.InDelta(t, 1.0, v[DependencyRatio], delta)
	assert.InDelta(t, 0.7, v[IncomeStability], delta)
	assert.InDelta(t, 0.8, v[AvgSupportStrength], delta)
	assert.Equal(t, ExpenseRigidityConstant, v[ExpenseRigidity])
	assert.Equal(t, MedicalRiskConstant, v[MedicalRisk])
	assert.Equal(t, 1.0, v[SinglePointFailure])
	assert.InDelta(t, 1.0/3.0, v[DependencyConcentration], delta)
	assert.InDelta(t, 0.4*(1.0/3.0)+0.3*0.4+0.3*0.6, v[ShockAmplification], delta)
	assert.InDelta(t, 0.4333, v[ShockAmplification], 1e-4)
}

func TestExtract_MutualEarnerScenario(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{
			{ID: "a", Role: household.RoleEarner},
			{ID: "b", Role: household.RoleEarner},
		},
		Supports: []household.Support{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	}

	require.True(t, IsAllEarner(g))
	assert.InDelta(t, 1.0, EarnerInterdependency(g), delta)

	v := Extract(g)
	assert.Equal(t, 2.0, v[NumEarners])
	assert.Equal(t, 0.0, v[DependencyRatio])
	assert.Equal(t, 0.0, v[SinglePointFailure])
	assert.InDelta(t, 0.5, v[IncomeStability], delta)
	assert.InDelta(t, 0.4*0.5+0.2*1.0+0.2*0.4+0.2*0.6, v[ShockAmplification], delta)
}

func TestExtract_NoEarners(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{dependent("a"), dependent("b"), {ID: "c", Role: "retired"}},
	}

	v := Extract(g)
	assert.Equal(t, 1.0, v[NumEarners])
	assert.InDelta(t, 2.0, v[DependencyRatio], delta)
	assert.Equal(t, household.DefaultStability, v[IncomeStability])
	assert.Equal(t, 1.0, v[SinglePointFailure])
	assert.False(t, IsAllEarner(g))
}

func TestExtract_EmptyGraph(t *testing.T) {
	for _, g := range []*household.Graph{nil, {}} {
		v := Extract(g)
		assert.Equal(t, 0.0, v[NumMembers])
		assert.Equal(t, 1.0, v[NumEarners])
		assert.InDelta(t, -1.0, v[DependencyRatio], delta)
		assert.Equal(t, 0.0, v[DependencyConcentration])
		assert.Equal(t, household.DefaultStability, v[IncomeStability])
		assert.Equal(t, household.DefaultStrength, v[AvgSupportStrength])
	}
}

func TestExtract_NoSupports(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{earner("a", 0.9), earner("b", 0.3)},
	}

	assert.Equal(t, 0.0, EarnerInterdependency(g))

	v := Extract(g)
	assert.Equal(t, household.DefaultStrength, v[AvgSupportStrength])
	assert.InDelta(t, 0.6, v[IncomeStability], delta)
	assert.InDelta(t, 0.4*0.4+0.2*0.4+0.2*0.6, v[ShockAmplification], delta)
}

func TestExtract_SingleEarnerAloneIsNotAllEarner(t *testing.T) {
	g := &household.Graph{Members: []household.Member{earner("a", 0.5)}}
	assert.False(t, IsAllEarner(g))

	v := Extract(g)
	assert.InDelta(t, DependentShock(0, MedicalRiskConstant, ExpenseRigidityConstant), v[ShockAmplification], delta)
}

func TestExtract_DanglingAndPartialEdges(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{earner("a", 0.5), earner("b", 0.5), earner("c", 0.5)},
		Supports: []household.Support{
			{From: "a", To: "b", Strength: household.Float(0.2)},
			{From: "a", To: "ghost", Strength: household.Float(0.4)},
			{From: "nobody", To: "c"},
			{From: "c", To: "a", Strength: household.Float(0.9)},
		},
	}

	assert.InDelta(t, 0.5, EarnerInterdependency(g), delta)
	v := Extract(g)
	assert.InDelta(t, (0.2+0.4+0.5+0.9)/4, v[AvgSupportStrength], delta)
}

func TestExtract_ConcentrationBounded(t *testing.T) {
	members := []household.Member{earner("e", 0.5)}
	for i := 0; i < 40; i++ {
		members = append(members, dependent(string(rune('a'+i))))
	}
	v := Extract(&household.Graph{Members: members})
	assert.InDelta(t, 40.0, v[DependencyRatio], delta)
	assert.Equal(t, 1.0, v[DependencyConcentration])
	assert.GreaterOrEqual(t, v[DependencyConcentration], 0.0)
	assert.LessOrEqual(t, v[DependencyConcentration], 1.0)
}

func TestExtract_Idempotent(t *testing.T) {
	g := &household.Graph{
		Members: []household.Member{earner("a", 0.61), earner("b", 0.42), dependent("c")},
		Supports: []household.Support{
			{From: "a", To: "c", Strength: household.Float(0.3)},
			{From: "b", To: "c"},
		},
	}
	first := Extract(g)
	second := Extract(g)
	assert.Equal(t, first, second)
}

func TestExtract_OrderIndependent(t *testing.T) {
	g1 := &household.Graph{
		Members:  []household.Member{earner("a", 0.6), dependent("b"), earner("c", 0.8)},
		Supports: []household.Support{{From: "a", To: "b"}, {From: "c", To: "a", Strength: household.Float(0.7)}},
	}
	g2 := &household.Graph{
		Members:  []household.Member{earner("c", 0.8), earner("a", 0.6), dependent("b")},
		Supports: []household.Support{{From: "c", To: "a", Strength: household.Float(0.7)}, {From: "a", To: "b"}},
	}
	v1, v2 := Extract(g1), Extract(g2)
	for i := range v1 {
		assert.InDelta(t, v1[i], v2[i], delta, Names[i])
	}
}
