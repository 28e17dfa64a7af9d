package household

import (
	"context"
	"sort"
)

const (
	// maxChainDepth caps the members counted on one chain.
	maxChainDepth      = 51
	chainRiskThreshold = 2
	lowStability       = 0.5
)

// Metrics describes the structural weak links of a household.
type Metrics struct {
	NumMembers      int      `json:"num_members" yaml:"numMembers"`
	NumEarners      int      `json:"num_earners" yaml:"numEarners"`
	CriticalMembers []string `json:"critical_members" yaml:"criticalMembers"`
	MaxChainDepth   int      `json:"max_chain_depth" yaml:"maxChainDepth"`
	HasChainRisk    bool     `json:"has_chain_risk" yaml:"hasChainRisk"`
	Chains          []Chain  `json:"chain_details" yaml:"chainDetails"`
}

// Chain is a dependency chain rooted at an earner.
type Chain struct {
	Earner          string `json:"earner" yaml:"earner"`
	Depth           int    `json:"chain_depth" yaml:"chainDepth"`
	TotalDependents int    `json:"total_dependents" yaml:"totalDependents"`
}

// ComputeMetrics finds the critical members and dependency chains of g.
// Self loops and edges pointing at unknown members are ignored. The work is
// linear in the size of the graph.
func ComputeMetrics(ctx context.Context, g *Graph) (*Metrics, error) {
	m := &Metrics{
		CriticalMembers: []string{},
		Chains:          []Chain{},
	}
	if g == nil || len(g.Members) == 0 {
		return m, nil
	}
	m.NumMembers = len(g.Members)

	known := make(map[string]bool, len(g.Members))
	for _, mem := range g.Members {
		if mem.ID != "" {
			known[mem.ID] = true
		}
	}

	out := make(map[string]int)
	in := make(map[string]int)
	adj := make(map[string][]string)
	for _, s := range g.Supports {
		if s.From == "" || s.To == "" || s.From == s.To || !known[s.From] || !known[s.To] {
			continue
		}
		out[s.From]++
		in[s.To]++
		adj[s.From] = append(adj[s.From], s.To)
	}

	earners := make([]Member, 0)
	for _, e := range g.Earners() {
		if e.ID != "" {
			earners = append(earners, e)
		}
	}
	m.NumEarners = len(g.Earners())
	if m.NumEarners == 0 {
		return m, nil
	}

	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			m.CriticalMembers = append(m.CriticalMembers, id)
		}
	}

	for _, e := range earners {
		if out[e.ID] > 0 {
			add(e.ID)
		}
	}

	if m.NumMembers == m.NumEarners {
		for _, e := range earners {
			low := e.HasStability() && e.Stability() < lowStability
			if low || in[e.ID] > 0 || out[e.ID] > 0 {
				add(e.ID)
			}
		}
		if len(m.CriticalMembers) == 0 && len(earners) > 0 {
			sorted := make([]Member, len(earners))
			copy(sorted, earners)
			sort.SliceStable(sorted, func(i, j int) bool {
				return sorted[i].Stability() < sorted[j].Stability()
			})
			add(sorted[0].ID)
		}
	}

	depths, err := chainDepths(ctx, earners, adj)
	if err != nil {
		return nil, err
	}
	for _, e := range earners {
		depth := depths[e.ID]
		if depth > m.MaxChainDepth {
			m.MaxChainDepth = depth
		}
		if depth > chainRiskThreshold {
			m.HasChainRisk = true
			m.Chains = append(m.Chains, Chain{
				Earner:          e.ID,
				Depth:           depth,
				TotalDependents: out[e.ID],
			})
		}
	}

	return m, nil
}

// chainDepths counts, for each earner, the members on its deepest support
// chain. Members that support each other in a cycle form one group and each
// of them counts once, so the depth is the longest path over the groups
// weighted by group size.
func chainDepths(ctx context.Context, earners []Member, adj map[string][]string) (map[string]int, error) {
	f := &groupFinder{
		adj:   adj,
		index: make(map[string]int),
		low:   make(map[string]int),
		on:    make(map[string]bool),
		group: make(map[string]int),
	}

	depths := make(map[string]int, len(earners))
	for _, e := range earners {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := f.index[e.ID]; !ok {
			f.visit(e.ID)
		}
		depths[e.ID] = min(f.depth[f.group[e.ID]], maxChainDepth)
	}
	return depths, nil
}

// groupFinder finds strongly connected groups (Tarjan). Groups are closed in
// reverse topological order, so the depth of every group a closing group
// points at is already known.
type groupFinder struct {
	adj   map[string][]string
	index map[string]int
	low   map[string]int
	on    map[string]bool
	stack []string
	group map[string]int
	depth []int
}

func (f *groupFinder) visit(id string) {
	f.index[id] = len(f.index)
	f.low[id] = f.index[id]
	f.stack = append(f.stack, id)
	f.on[id] = true

	for _, n := range f.adj[id] {
		if _, seen := f.index[n]; !seen {
			f.visit(n)
			f.low[id] = min(f.low[id], f.low[n])
		} else if f.on[n] {
			f.low[id] = min(f.low[id], f.index[n])
		}
	}

	if f.low[id] != f.index[id] {
		return
	}

	g := len(f.depth)
	var members []string
	for {
		n := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]
		f.on[n] = false
		f.group[n] = g
		members = append(members, n)
		if n == id {
			break
		}
	}

	deepest := 0
	for _, n := range members {
		for _, next := range f.adj[n] {
			if ng := f.group[next]; ng != g {
				deepest = max(deepest, f.depth[ng])
			}
		}
	}
	f.depth = append(f.depth, len(members)+deepest)
}
