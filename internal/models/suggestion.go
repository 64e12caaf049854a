// internal/models/suggestion.go
package models

import "time"

// ClassificationResult is the category prediction for a ticket text.
type ClassificationResult struct {
	Category   TicketCategory `json:"category"`
	Confidence float64        `json:"confidence"`
}

// DraftResult is an assembled reply with citations.
type DraftResult struct {
	Reply         string   `json:"reply"`
	CitedArticles []string `json:"citedArticles"`
	Confidence    float64  `json:"confidence"`
}

// ModelInfo records provenance for a suggestion.
type ModelInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"promptVersion"`
	LatencyMs     int64  `json:"latencyMs"`
}

// FeedbackAction enumerates agent feedback on a suggestion.
type FeedbackAction string

const (
	FeedbackAccept FeedbackAction = "accept"
	FeedbackModify FeedbackAction = "modify"
	FeedbackReject FeedbackAction = "reject"
)

// AgentSuggestion is persisted once per ticket. The prediction fields are
// immutable after creation; feedback operations only set the feedback fields.
type AgentSuggestion struct {
	ID                string         `json:"id"`
	TicketID          string         `json:"ticketId"`
	PredictedCategory TicketCategory `json:"predictedCategory"`
	CitedArticles     []string       `json:"citedArticles"`
	DraftReply        string         `json:"draftReply"`
	Confidence        float64        `json:"confidence"`
	AutoClosed        bool           `json:"autoClosed"`
	Model             ModelInfo      `json:"model"`
	FeedbackAction    FeedbackAction `json:"feedbackAction,omitempty"`
	FeedbackBy        string         `json:"feedbackBy,omitempty"`
	FeedbackNote      string         `json:"feedbackNote,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// EscalationContext records one rule firing. Ephemeral.
type EscalationContext struct {
	TraceID   string    `json:"traceId"`
	Initiator string    `json:"initiator"`
	Rule      string    `json:"rule"`
	Reason    string    `json:"reason"`
	TargetID  string    `json:"targetId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryMetrics aggregates suggestion performance for one category.
type CategoryMetrics struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
	AutoCloseRate float64 `json:"autoCloseRate"`
}

// SuggestionMetrics is the aggregate returned by the metrics operation.
type SuggestionMetrics struct {
	Total         int                                `json:"total"`
	AutoClosed    int                                `json:"autoClosed"`
	AutoCloseRate float64                            `json:"autoCloseRate"`
	ByCategory    map[TicketCategory]CategoryMetrics `json:"byCategory"`
	Rating        string                             `json:"rating"`
}
