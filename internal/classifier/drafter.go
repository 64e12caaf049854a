// internal/classifier/drafter.go
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"helpdesk-workers/internal/models"
)

const (
	maxActionSteps = 4
	maxCitations   = 2
	maxCitedIDs    = 3
)

var (
	numberedLineRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletLineRe   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
)

// actionVerbs mark sentences worth lifting into action steps when an article
// has no explicit list structure.
var actionVerbs = []string{
	"check", "verify", "contact", "update", "reset",
	"review", "confirm", "ensure", "visit", "try",
}

var openingByCategory = map[models.TicketCategory]string{
	models.CategoryBilling:  "Thanks for reaching out about your billing concern. We understand payment issues are stressful and we want to resolve this quickly.",
	models.CategoryTech:     "Thanks for reporting this technical issue. Let's get it sorted out.",
	models.CategoryShipping: "Thanks for contacting us about your delivery. We track every shipment and will help you locate yours.",
	models.CategoryOther:    "Thanks for getting in touch. We're happy to help with your request.",
}

var genericStepsByCategory = map[models.TicketCategory][]string{
	models.CategoryBilling: {
		"Review the charge details in your billing history",
		"Check whether the charge matches an active subscription",
		"Reply with the invoice number so we can investigate",
		"Contact your bank if the charge is unrecognized",
	},
	models.CategoryTech: {
		"Try signing out and back in",
		"Clear your browser cache and reload the page",
		"Check whether the issue persists in another browser",
		"Reply with any error message you see",
	},
	models.CategoryShipping: {
		"Check the tracking link in your order confirmation",
		"Verify the delivery address on the order",
		"Allow one business day for tracking updates",
		"Reply with your order number if the package is still missing",
	},
	models.CategoryOther: {
		"Reply with any additional details about your request",
		"Check our help center for related guides",
		"Confirm the account email you are writing about",
		"Let us know if this is time sensitive",
	},
}

// Drafter assembles reply drafts from a classification and retrieved articles.
type Drafter struct {
	classifier *Classifier
}

func NewDrafter(c *Classifier) *Drafter {
	return &Drafter{classifier: c}
}

// Draft builds a structured reply: a category opening, up to four action
// steps preferring steps lifted from the two best articles, and up to two
// article citations.
func (d *Drafter) Draft(text string, articles []models.Article) models.DraftResult {
	classification := d.classifier.Classify(text)
	category := classification.Category

	steps := extractSteps(articles, category)

	var b strings.Builder
	b.WriteString(openingByCategory[category])
	b.WriteString("\n\nHere is what you can do:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	cited := citedIDs(articles)
	if len(articles) > 0 {
		b.WriteString("\nThese articles may help:\n")
		for i, a := range articles {
			if i == maxCitations {
				break
			}
			fmt.Fprintf(&b, "- %s (related to your %s question)\n", a.Title, category)
		}
	}
	b.WriteString("\nIf this doesn't resolve the issue, reply and an agent will follow up.")

	return models.DraftResult{
		Reply:         b.String(),
		CitedArticles: cited,
		Confidence:    draftConfidence(classification.Confidence, text, articles, cited),
	}
}

// extractSteps pulls up to four actionable lines from the top two articles,
// in order of preference: numbered lines, bullet lines, action sentences.
// Generic category steps fill any remaining slots.
func extractSteps(articles []models.Article, category models.TicketCategory) []string {
	top := articles
	if len(top) > 2 {
		top = top[:2]
	}

	var steps []string
	appendStep := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || len(steps) >= maxActionSteps {
			return
		}
		for _, existing := range steps {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		steps = append(steps, s)
	}

	for _, a := range top {
		for _, line := range strings.Split(a.Body, "\n") {
			if m := numberedLineRe.FindStringSubmatch(line); m != nil {
				appendStep(m[1])
			}
		}
	}
	for _, a := range top {
		for _, line := range strings.Split(a.Body, "\n") {
			if m := bulletLineRe.FindStringSubmatch(line); m != nil {
				appendStep(m[1])
			}
		}
	}
	for _, a := range top {
		for _, sentence := range splitSentences(a.Body) {
			if startsWithActionVerb(sentence) {
				appendStep(sentence)
			}
		}
	}

	for _, generic := range genericStepsByCategory[category] {
		appendStep(generic)
	}
	return steps
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func startsWithActionVerb(sentence string) bool {
	first := strings.ToLower(strings.SplitN(strings.TrimSpace(sentence), " ", 2)[0])
	for _, verb := range actionVerbs {
		if first == verb {
			return true
		}
	}
	return false
}

func citedIDs(articles []models.Article) []string {
	ids := make([]string, 0, maxCitedIDs)
	for _, a := range articles {
		if len(ids) == maxCitedIDs {
			break
		}
		ids = append(ids, a.ID)
	}
	return ids
}

// draftConfidence layers article evidence on the classification confidence
// and clamps into [0.3, 0.95].
func draftConfidence(classifyConfidence float64, text string, articles []models.Article, cited []string) float64 {
	confidence := classifyConfidence

	articleBonus := float64(len(articles)) * 0.05
	if articleBonus > 0.15 {
		articleBonus = 0.15
	}
	confidence += articleBonus

	if len(strings.TrimSpace(text)) < 20 {
		confidence -= 0.1
	}
	if len(cited) > 0 {
		confidence += 0.1
	}

	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
