// Package validation checks agent suggestion payloads before persistence.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// suggestionSchema mirrors the persistence constraints on agent suggestions:
// draft length bounds, confidence range, citation cap, category enum.
var suggestionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"ticketId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"predictedCategory": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"billing", "tech", "shipping", "other"},
		},
		"draftReply": map[string]interface{}{
			"type":      "string",
			"minLength": 10,
			"maxLength": 5000,
		},
		"confidence": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"citedArticles": map[string]interface{}{
			"type":     "array",
			"maxItems": 10,
			"items": map[string]interface{}{
				"type": "string",
			},
		},
		"autoClosed": map[string]interface{}{
			"type": "boolean",
		},
	},
	"required": []interface{}{"ticketId", "predictedCategory", "draftReply", "confidence"},
}

// SuggestionPayload is the shape validated before a suggestion row is written.
type SuggestionPayload struct {
	TicketID          string   `json:"ticketId"`
	PredictedCategory string   `json:"predictedCategory"`
	DraftReply        string   `json:"draftReply"`
	Confidence        float64  `json:"confidence"`
	CitedArticles     []string `json:"citedArticles"`
	AutoClosed        bool     `json:"autoClosed"`
}

// ValidateSuggestion validates the payload against the schema plus the
// cross-field rule: autoClosed requires confidence at or above minAutoClose.
func ValidateSuggestion(payload SuggestionPayload, minAutoClose float64) error {
	schemaLoader := gojsonschema.NewGoLoader(suggestionSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("suggestion validation failed: %v", errs)
	}

	if payload.AutoClosed && payload.Confidence < minAutoClose {
		return fmt.Errorf("suggestion validation failed: autoClosed requires confidence >= %.2f, got %.2f",
			minAutoClose, payload.Confidence)
	}

	return nil
}
