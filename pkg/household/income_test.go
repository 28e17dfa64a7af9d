package household

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiSourceMember() Member {
	return Member{
		ID:   "e",
		Role: RoleEarner,
		// ignored while sources are present
		IncomeStability: Float(0.1),
		IncomeSources: []IncomeSource{
			{Type: SourceJob, Stability: Float(0.8), Volatility: Float(0.2)},
			{Type: SourceFreelance, Stability: Float(0.5), Volatility: Float(0.6)},
			{Type: SourceRental, Stability: Float(0.6), IsPrimary: true},
		},
	}
}

func TestMember_StabilityFromSources(t *testing.T) {
	m := multiSourceMember()
	assert.InDelta(t, (0.8+0.5+0.6)/3, m.Stability(), 1e-9)
	assert.True(t, m.HasStability())

	m.IncomeSources = []IncomeSource{{Type: SourceJob}}
	assert.Equal(t, DefaultStability, m.Stability())

	assert.False(t, Member{ID: "x"}.HasStability())
}

func TestMember_Income(t *testing.T) {
	p := multiSourceMember().Income()
	assert.InDelta(t, 1.0/3, p.Diversification, 1e-9)
	assert.InDelta(t, 0.4, p.PrimaryRisk, 1e-9)
	assert.Equal(t, 0.6, p.MaxVolatility)
	assert.True(t, p.MultipleSources)
	assert.Equal(t, 3, p.NumSources)
}

func TestMember_IncomeMostStableIsPrimary(t *testing.T) {
	m := Member{IncomeSources: []IncomeSource{
		{Stability: Float(0.3)},
		{Stability: Float(0.9)},
	}}
	p := m.Income()
	assert.InDelta(t, 0.1, p.PrimaryRisk, 1e-9)
	assert.Equal(t, 0.5, p.Diversification)
	assert.Equal(t, DefaultVolatility, p.MaxVolatility)
}

func TestMember_IncomeWithoutSources(t *testing.T) {
	p := Member{IncomeStability: Float(0.7)}.Income()
	assert.Equal(t, 0.7, p.AvgStability)
	assert.InDelta(t, 0.3, p.PrimaryRisk, 1e-9)
	assert.Zero(t, p.Diversification)
	assert.Equal(t, 1, p.NumSources)
	assert.False(t, p.MultipleSources)

	assert.Zero(t, Member{IncomeStability: Float(0)}.Income().NumSources)
}

func TestShockSources(t *testing.T) {
	sources := multiSourceMember().IncomeSources

	tests := []struct {
		shock      string
		changed    int
		stability  float64
		volatility float64
	}{
		{ShockJobLoss, 0, 0, 1},
		{ShockFreelance, 1, 0.3, 0.9},
		{ShockRentalVacancy, 2, 0.3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.shock, func(t *testing.T) {
			out, err := ShockSources(sources, tt.shock)
			require.NoError(t, err)
			require.Len(t, out, len(sources))
			for i := range out {
				if i != tt.changed {
					assert.Equal(t, sources[i], out[i])
					continue
				}
				assert.InDelta(t, tt.stability, *out[i].Stability, 1e-9)
				assert.InDelta(t, tt.volatility, *out[i].Volatility, 1e-9)
			}
		})
	}

	// input untouched
	assert.Equal(t, 0.8, *sources[0].Stability)

	_, err := ShockSources(sources, "meteor")
	assert.ErrorIs(t, err, ErrUnknownShock)
	_, err = ShockSources(sources, ShockMemberLoss)
	assert.ErrorIs(t, err, ErrUnknownShock)
}

func TestWithIncomeShock(t *testing.T) {
	g := &Graph{Members: []Member{multiSourceMember(), {ID: "d"}}}

	after, err := g.WithIncomeShock("e", ShockJobLoss)
	require.NoError(t, err)
	m, _ := after.Member("e")
	assert.InDelta(t, (0+0.5+0.6)/3, m.Stability(), 1e-9)
	assert.True(t, m.IsEarner())

	orig, _ := g.Member("e")
	assert.InDelta(t, (0.8+0.5+0.6)/3, orig.Stability(), 1e-9)

	_, err = g.WithIncomeShock("e", "meteor")
	assert.ErrorIs(t, err, ErrUnknownShock)
}

func TestWithMemberLoss_DropsSources(t *testing.T) {
	g := &Graph{Members: []Member{multiSourceMember()}}
	m, _ := g.WithMemberLoss("e").Member("e")
	assert.Empty(t, m.IncomeSources)
	assert.Equal(t, 0.0, m.Stability())
}

func TestParse_IncomeSources(t *testing.T) {
	body := `{"members":[{"id":"e","role":"earner","is_applicant":true,
		"income_sources":[{"type":"job","stability":0.9,"is_primary":true},{"type":"rental"}]}]}`
	g, err := Parse(strings.NewReader(body))
	require.NoError(t, err)

	a, ok := g.Applicant()
	require.True(t, ok)
	assert.Equal(t, "e", a.ID)
	require.Len(t, a.IncomeSources, 2)
	assert.True(t, a.IncomeSources[0].IsPrimary)
	assert.InDelta(t, 0.7, a.Stability(), 1e-9)

	_, ok = (&Graph{Members: []Member{{ID: "x"}}}).Applicant()
	assert.False(t, ok)
}
