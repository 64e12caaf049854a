// internal/models/embedding.go
package models

import "time"

// Chunk is a span of article text with its own vector.
type Chunk struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
	Start  int       `json:"start"`
	End    int       `json:"end"`
}

// ArticleEmbedding owns the vector(s) for one article. One-to-one with an
// article; recreated when the source content changes, deleted when the article
// is unpublished or removed.
type ArticleEmbedding struct {
	ArticleID   string    `json:"articleId"`
	Vector      []float64 `json:"vector"`
	ModelTag    string    `json:"modelTag"`
	Chunks      []Chunk   `json:"chunks,omitempty"`
	ContentHash string    `json:"contentHash"`
	LastUpdated time.Time `json:"lastUpdated"`
}
