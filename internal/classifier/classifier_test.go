// internal/classifier/classifier_test.go
package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"helpdesk-workers/internal/models"
)

func TestClassify_Categories(t *testing.T) {
	c := New()

	tests := []struct {
		name          string
		text          string
		category      models.TicketCategory
		minConfidence float64
	}{
		{
			name:          "double charge is billing",
			text:          "My card was charged twice, please refund",
			category:      models.CategoryBilling,
			minConfidence: 0.65,
		},
		{
			name:          "login crash is tech",
			text:          "The app shows an error and crashes on login",
			category:      models.CategoryTech,
			minConfidence: 0.65,
		},
		{
			name:          "late package is shipping",
			text:          "My package tracking says delivery was delayed",
			category:      models.CategoryShipping,
			minConfidence: 0.65,
		},
		{
			name:     "vague request is other",
			text:     "I have a general question about my account",
			category: models.CategoryOther,
		},
		{
			name:     "no keywords at all",
			text:     "hello there",
			category: models.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text)
			assert.Equal(t, tt.category, result.Category)
			assert.GreaterOrEqual(t, result.Confidence, tt.minConfidence)
			assert.LessOrEqual(t, result.Confidence, 1.0)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
		})
	}
}

func TestClassify_RepeatedTechKeywords(t *testing.T) {
	c := New()

	result := c.Classify(strings.Repeat("error crash login ", 5))
	assert.Equal(t, models.CategoryTech, result.Category)
	assert.GreaterOrEqual(t, result.Confidence, 0.75)
}

func TestClassify_TieBreakPrefersTech(t *testing.T) {
	c := New()

	// One whole-word hit for each category: identical scores.
	result := c.Classify("refund error shipping help")
	assert.Equal(t, models.CategoryTech, result.Category)
}

func TestClassify_WholeWordBeatsSubstring(t *testing.T) {
	c := New()

	// "card" appears only inside "discarded" for billing, while "bug" is a
	// standalone tech word.
	result := c.Classify("discarded bug")
	assert.Equal(t, models.CategoryTech, result.Category)
}

func TestClassify_ConfidenceCapped(t *testing.T) {
	c := New()

	result := c.Classify(strings.Repeat("refund payment invoice billing charge ", 40))
	assert.LessOrEqual(t, result.Confidence, 0.95)
}

func TestConfidenceFor_Steps(t *testing.T) {
	assert.InDelta(t, 0.5, confidenceFor(0, 0), 1e-9)
	assert.InDelta(t, 0.65, confidenceFor(1, 0), 1e-9)
	assert.InDelta(t, 0.75, confidenceFor(2, 0), 1e-9)
	assert.InDelta(t, 0.85, confidenceFor(3, 0), 1e-9)
	assert.InDelta(t, 0.85, confidenceFor(50, 0), 1e-9)

	// Length bonus: 40 words add 0.5 raw, clipped to 0.15.
	assert.InDelta(t, 0.65, confidenceFor(0, 12), 1e-9)
	assert.InDelta(t, 0.95, confidenceFor(3, 40), 1e-9)
}
