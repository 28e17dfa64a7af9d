package household

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsOf(t *testing.T, g *Graph) *Metrics {
	t.Helper()
	m, err := ComputeMetrics(context.Background(), g)
	require.NoError(t, err)
	return m
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := metricsOf(t, &Graph{})
	assert.Equal(t, 0, m.NumMembers)
	assert.Empty(t, m.CriticalMembers)
	assert.False(t, m.HasChainRisk)

	m = metricsOf(t, nil)
	assert.NotNil(t, m.CriticalMembers)
}

func TestComputeMetrics_NoEarners(t *testing.T) {
	m := metricsOf(t, &Graph{Members: []Member{{ID: "a"}, {ID: "b"}}})
	assert.Equal(t, 2, m.NumMembers)
	assert.Equal(t, 0, m.NumEarners)
	assert.Empty(t, m.CriticalMembers)
}

func TestComputeMetrics_SupportingEarnerIsCritical(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e1", Role: RoleEarner},
			{ID: "e2", Role: RoleEarner},
			{ID: "d1", Role: RoleDependent},
		},
		Supports: []Support{
			{From: "e1", To: "d1"},
			{From: "e2", To: "e2"},    // self loop
			{From: "e2", To: "ghost"}, // dangling
		},
	}
	m := metricsOf(t, g)
	assert.Equal(t, []string{"e1"}, m.CriticalMembers)
	assert.Equal(t, 2, m.MaxChainDepth)
	assert.False(t, m.HasChainRisk)
}

func TestComputeMetrics_AllEarnerFallback(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e1", Role: RoleEarner, IncomeStability: Float(0.9)},
			{ID: "e2", Role: RoleEarner, IncomeStability: Float(0.6)},
		},
	}
	m := metricsOf(t, g)
	assert.Equal(t, []string{"e2"}, m.CriticalMembers)
}

func TestComputeMetrics_AllEarnerLowStability(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e1", Role: RoleEarner, IncomeStability: Float(0.3)},
			{ID: "e2", Role: RoleEarner, IncomeStability: Float(0.8)},
		},
	}
	m := metricsOf(t, g)
	assert.Equal(t, []string{"e1"}, m.CriticalMembers)
}

func TestComputeMetrics_ChainRisk(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e", Role: RoleEarner},
			{ID: "a"},
			{ID: "b"},
			{ID: "c"},
		},
		Supports: []Support{
			{From: "e", To: "a"},
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "a"}, // cycle
		},
	}
	m := metricsOf(t, g)
	assert.Equal(t, 4, m.MaxChainDepth)
	assert.True(t, m.HasChainRisk)
	if assert.Len(t, m.Chains, 1) {
		assert.Equal(t, "e", m.Chains[0].Earner)
		assert.Equal(t, 1, m.Chains[0].TotalDependents)
	}
}

func TestComputeMetrics_MutualEarners(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "a", Role: RoleEarner},
			{ID: "b", Role: RoleEarner},
			{ID: "c"},
		},
		Supports: []Support{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
			{From: "b", To: "c"},
		},
	}
	m := metricsOf(t, g)
	assert.Equal(t, 3, m.MaxChainDepth)
	assert.Len(t, m.Chains, 2)
}

func completeGraph(n int) *Graph {
	g := &Graph{}
	for i := range n {
		g.Members = append(g.Members, Member{ID: fmt.Sprintf("m%d", i), Role: RoleEarner})
	}
	for _, from := range g.Members {
		for _, to := range g.Members {
			if from.ID != to.ID {
				g.Supports = append(g.Supports, Support{From: from.ID, To: to.ID})
			}
		}
	}
	return g
}

func TestComputeMetrics_DenseGraph(t *testing.T) {
	start := time.Now()
	m := metricsOf(t, completeGraph(40))
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 40, m.MaxChainDepth)
	assert.Len(t, m.CriticalMembers, 40)
	assert.Len(t, m.Chains, 40)
}

func TestComputeMetrics_DepthCapped(t *testing.T) {
	g := &Graph{Members: []Member{{ID: "e", Role: RoleEarner}}}
	prev := "e"
	for i := range 80 {
		id := fmt.Sprintf("d%d", i)
		g.Members = append(g.Members, Member{ID: id})
		g.Supports = append(g.Supports, Support{From: prev, To: id})
		prev = id
	}
	assert.Equal(t, maxChainDepth, metricsOf(t, g).MaxChainDepth)
}

func TestComputeMetrics_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ComputeMetrics(ctx, completeGraph(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeMetrics_ZeroStabilityEarnerIsLow(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e1", Role: RoleEarner, IncomeStability: Float(0.9)},
			{ID: "e2", Role: RoleEarner, IncomeStability: Float(0)},
			{ID: "e3", Role: RoleEarner},
		},
	}
	assert.Equal(t, []string{"e2"}, metricsOf(t, g).CriticalMembers)
}

func TestComputeMetrics_IncomeSourcesStability(t *testing.T) {
	g := &Graph{
		Members: []Member{
			{ID: "e1", Role: RoleEarner, IncomeStability: Float(0.9)},
			{ID: "e2", Role: RoleEarner, IncomeSources: []IncomeSource{
				{Type: SourceJob, Stability: Float(0.2)},
				{Type: SourceRental, Stability: Float(0.4)},
			}},
		},
	}
	assert.Equal(t, []string{"e2"}, metricsOf(t, g).CriticalMembers)
}
