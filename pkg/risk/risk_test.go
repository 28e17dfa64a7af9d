package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{0, Low},
		{0.2999, Low},
		{0.3, Medium},
		{0.45, Medium},
		{0.5999, Medium},
		{0.6, High},
		{1, High},
		{-0.1, Low},
		{1.5, High},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestClassify_NoGaps(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		s := float64(i) / 1000
		b := Classify(s)
		assert.Contains(t, []Band{Low, Medium, High}, b)
	}
	assert.Equal(t, Low, Classify(math.Nextafter(MediumThreshold, 0)))
	assert.Equal(t, Medium, Classify(math.Nextafter(HighThreshold, 0)))
}

func TestSummary(t *testing.T) {
	assert.Contains(t, Low.Summary(), "good")
	assert.Contains(t, Medium.Summary(), "moderate")
	assert.Contains(t, High.Summary(), "highly")
	assert.Contains(t, Band("X").Summary(), "Unknown")
}
