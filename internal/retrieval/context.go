// internal/retrieval/context.go
package retrieval

import "helpdesk-workers/internal/models"

// EstimateTokens approximates the token cost of a text as ceil(len/4). The
// same estimator must be used for budgeting and reporting so totals add up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// BuildContext packs ranked articles into a token budget. Packing stops at the
// first article that would overflow, preserving rank order: a cheaper article
// further down the list never jumps the queue.
func BuildContext(query string, ranked []models.ScoredArticle, maxTokens int) *models.RetrievalContext {
	rc := &models.RetrievalContext{
		Query:     query,
		Articles:  []models.Article{},
		Scores:    []float64{},
		MaxTokens: maxTokens,
	}

	for _, sa := range ranked {
		cost := EstimateTokens(sa.Article.Content())
		if rc.TotalTokens+cost > maxTokens {
			break
		}
		rc.Articles = append(rc.Articles, sa.Article)
		rc.Scores = append(rc.Scores, sa.Score)
		rc.TotalTokens += cost
	}
	return rc
}
