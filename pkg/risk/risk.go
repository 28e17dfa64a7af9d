// Package risk buckets a fragility score into a discrete band.
package risk

// Band is a discrete risk classification.
type Band string

const (
	Low    Band = "LOW"
	Medium Band = "MEDIUM"
	High   Band = "HIGH"

	// MediumThreshold is the lowest score classified as Medium.
	MediumThreshold = 0.3

	// HighThreshold is the lowest score classified as High.
	HighThreshold = 0.6
)

// Classify maps a score to its band. Each band is closed on its lower edge
// and open on its upper edge.
func Classify(score float64) Band {
	switch {
	case score < MediumThreshold:
		return Low
	case score < HighThreshold:
		return Medium
	default:
		return High
	}
}

// Summary describes the band in one sentence.
func (b Band) Summary() string {
	switch b {
	case Low:
		return "Household shows good financial resilience."
	case Medium:
		return "Household has moderate financial resilience."
	case High:
		return "Household is highly vulnerable to financial shocks."
	default:
		return "Unknown risk band."
	}
}
