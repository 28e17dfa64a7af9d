// Package household defines the household graph received from callers:
// members, the directed support edges between them, and the defaults applied
// to fields a caller leaves out.
package household

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// RoleEarner marks a member as an income source.
	RoleEarner Role = "earner"
	// RoleDependent marks a member supported by others.
	RoleDependent Role = "dependent"

	// DefaultStability is used for an earner without income_stability.
	DefaultStability = 0.5
	// DefaultStrength is used for a support edge without strength.
	DefaultStrength = 0.5
)

var errEmptyBody = errors.New("empty request body")

// Role is the member role. Anything other than RoleEarner is a non-earner.
type Role string

// Member is a single person in the household.
type Member struct {
	ID              string         `json:"id" yaml:"id"`
	Role            Role           `json:"role,omitempty" yaml:"role,omitempty"`
	IncomeStability *float64       `json:"income_stability,omitempty" yaml:"incomeStability,omitempty"`
	IncomeSources   []IncomeSource `json:"income_sources,omitempty" yaml:"incomeSources,omitempty"`
	IsApplicant     bool           `json:"is_applicant,omitempty" yaml:"isApplicant,omitempty"`
}

// IsEarner reports whether the member is an income source.
func (m Member) IsEarner() bool {
	return m.Role == RoleEarner
}

// Stability returns the mean stability of the income sources when the member
// has any, else the income stability or DefaultStability when absent.
func (m Member) Stability() float64 {
	if len(m.IncomeSources) > 0 {
		return avgSourceStability(m.IncomeSources)
	}
	if m.IncomeStability == nil {
		return DefaultStability
	}
	return *m.IncomeStability
}

// HasStability reports whether the stability was given rather than defaulted.
func (m Member) HasStability() bool {
	return m.IncomeStability != nil || len(m.IncomeSources) > 0
}

// Support is a directed support relation between two members.
type Support struct {
	From     string   `json:"from" yaml:"from"`
	To       string   `json:"to" yaml:"to"`
	Strength *float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// Weight returns the edge strength or DefaultStrength when absent.
func (s Support) Weight() float64 {
	if s.Strength == nil {
		return DefaultStrength
	}
	return *s.Strength
}

// Graph is one household: its members and support edges.
// A Graph is treated as immutable once decoded.
type Graph struct {
	Members  []Member  `json:"members" yaml:"members"`
	Supports []Support `json:"supports" yaml:"supports"`
}

// Earners returns the members with the earner role.
func (g *Graph) Earners() []Member {
	if g == nil {
		return nil
	}
	list := make([]Member, 0, len(g.Members))
	for _, m := range g.Members {
		if m.IsEarner() {
			list = append(list, m)
		}
	}
	return list
}

// EarnerIDs returns the set of earner ids.
func (g *Graph) EarnerIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range g.Earners() {
		ids[m.ID] = struct{}{}
	}
	return ids
}

// Member returns the first member with the given id.
func (g *Graph) Member(id string) (Member, bool) {
	if g == nil {
		return Member{}, false
	}
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Applicant returns the first member flagged as the loan applicant.
func (g *Graph) Applicant() (Member, bool) {
	if g == nil {
		return Member{}, false
	}
	for _, m := range g.Members {
		if m.IsApplicant {
			return m, true
		}
	}
	return Member{}, false
}

// WithMemberLoss returns a copy of the graph where the member identified by id
// lost all income: the member becomes a dependent with zero stability and no
// income sources. Supports are kept as they are.
func (g *Graph) WithMemberLoss(id string) *Graph {
	out := g.clone()
	for i, m := range out.Members {
		if m.ID == id {
			out.Members[i].Role = RoleDependent
			out.Members[i].IncomeStability = Float(0)
			out.Members[i].IncomeSources = nil
		}
	}
	return out
}

// clone copies members and supports. Income sources are shared until a
// shock replaces them.
func (g *Graph) clone() *Graph {
	out := &Graph{
		Members:  make([]Member, len(g.Members)),
		Supports: make([]Support, len(g.Supports)),
	}
	copy(out.Members, g.Members)
	copy(out.Supports, g.Supports)
	return out
}

// Batch is the multi-household request shape.
type Batch struct {
	Instances []*Graph `json:"instances" yaml:"instances"`
}

// Parse decodes a single household graph from r.
func Parse(r io.Reader) (*Graph, error) {
	var g Graph
	if err := decode(r, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ParseBatch decodes a batch of household graphs from r.
func ParseBatch(r io.Reader) (*Batch, error) {
	var b Batch
	if err := decode(r, &b); err != nil {
		return nil, err
	}
	for i, g := range b.Instances {
		if g == nil {
			b.Instances[i] = &Graph{}
		}
	}
	return &b, nil
}

func decode(r io.Reader, target any) error {
	if r == nil {
		return errEmptyBody
	}
	if err := json.NewDecoder(r).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decoding household: %w", err)
	}
	return nil
}

// Float returns a pointer to v, handy for optional fields.
func Float(v float64) *float64 {
	return &v
}
