// internal/models/article.go
package models

import "time"

// ArticleStatus enumerates knowledge-base article lifecycle states.
type ArticleStatus string

const (
	ArticleStatusDraft       ArticleStatus = "draft"
	ArticleStatusPublished   ArticleStatus = "published"
	ArticleStatusUnpublished ArticleStatus = "unpublished"
)

// Article is a knowledge-base entry retrieved during triage.
type Article struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Tags      []string      `json:"tags"`
	Status    ArticleStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Content returns the text embedded for similarity search.
func (a *Article) Content() string {
	return a.Title + "\n" + a.Body
}

// ScoredArticle is a retrieval result. Ephemeral, produced per query.
type ScoredArticle struct {
	Article Article `json:"article"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
	Method  string  `json:"method"`
}

// RetrievalContext is a token-budgeted slice of ranked articles handed to the
// drafter.
type RetrievalContext struct {
	Query       string    `json:"query"`
	Articles    []Article `json:"articles"`
	Scores      []float64 `json:"scores"`
	TotalTokens int       `json:"totalTokens"`
	MaxTokens   int       `json:"maxTokens"`
}

// RAGResult is the outcome of one retrieval request.
type RAGResult struct {
	Articles        []ScoredArticle        `json:"articles"`
	Query           string                 `json:"query"`
	SearchMethod    string                 `json:"searchMethod"`
	TotalMatches    int                    `json:"totalMatches"`
	ExecutionTimeMs int64                  `json:"executionTimeMs"`
	BackendMetadata map[string]interface{} `json:"backendMetadata,omitempty"`
}
