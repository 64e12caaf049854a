// Package classifier predicts a ticket's category from keyword evidence and
// drafts a reply grounded in retrieved articles. No trained model is involved;
// scoring is deterministic so every prediction can be explained.
package classifier

import (
	"regexp"
	"strings"

	"helpdesk-workers/internal/models"
)

// categoryOrder is the tie-break priority when two categories score equally.
var categoryOrder = []models.TicketCategory{
	models.CategoryTech,
	models.CategoryBilling,
	models.CategoryShipping,
	models.CategoryOther,
}

var categoryKeywords = map[models.TicketCategory][]string{
	models.CategoryBilling: {
		"payment", "invoice", "charge", "refund", "billing",
		"subscription", "price", "card", "receipt", "overcharge",
	},
	models.CategoryTech: {
		"error", "bug", "crash", "login", "password",
		"technical", "broken", "install", "update", "loading",
	},
	models.CategoryShipping: {
		"shipping", "delivery", "package", "tracking", "order",
		"shipment", "address", "courier", "delayed", "lost",
	},
	models.CategoryOther: {
		"help", "question", "support", "account", "request",
		"information", "assistance", "general", "feedback", "other",
	},
}

// wholeWordRes holds one compiled word-boundary pattern per keyword.
var wholeWordRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp)
	for _, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if _, ok := res[kw]; !ok {
				res[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
		}
	}
	return res
}()

type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Classify scores the text against each category keyword set. A keyword
// occurrence counts 1, or 2 when it matches as a whole word. The best score
// wins; ties resolve tech over billing over shipping over other.
func (c *Classifier) Classify(text string) models.ClassificationResult {
	lowered := strings.ToLower(text)

	best := models.CategoryOther
	bestScore := 0
	for _, category := range categoryOrder {
		score := 0
		for _, kw := range categoryKeywords[category] {
			whole := len(wholeWordRes[kw].FindAllStringIndex(lowered, -1))
			total := strings.Count(lowered, kw)
			score += whole*2 + (total - whole)
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}

	return models.ClassificationResult{
		Category:   best,
		Confidence: confidenceFor(bestScore, len(strings.Fields(text))),
	}
}

// confidenceFor steps up with keyword evidence and adds a small bonus for
// longer texts, capped at 0.95.
func confidenceFor(score, wordCount int) float64 {
	confidence := 0.5
	switch {
	case score >= 3:
		confidence = 0.85
	case score >= 2:
		confidence = 0.75
	case score >= 1:
		confidence = 0.65
	}

	bonus := float64(wordCount) / 80.0
	if bonus > 0.15 {
		bonus = 0.15
	}

	confidence += bonus
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
