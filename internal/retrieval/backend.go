// internal/retrieval/backend.go
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

// Backend runs searches against the managed Elasticsearch article index.
type Backend struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewBackend(client *elasticsearch.Client, index string, log logger.Logger) *Backend {
	return &Backend{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search-backend"}),
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	res, err := b.client.Ping(b.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping returned status %s", res.Status())
	}
	return nil
}

// VectorSearch ranks published articles by cosine similarity of their stored
// content vector against the query vector.
func (b *Backend) VectorSearch(ctx context.Context, queryVector []float64, limit int) ([]models.ScoredArticle, error) {
	body := buildVectorQuery(queryVector)
	hits, err := b.search(ctx, body, limit)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError("es_vector", err)
	}

	results := make([]models.ScoredArticle, 0, len(hits))
	for _, h := range hits {
		// script_score shifts cosine by +1 to stay positive; undo it here.
		results = append(results, scoredFromHit(h, h.Score-1.0, "vector similarity", "es_vector"))
	}
	return results, nil
}

// TextSearch ranks published articles by BM25 relevance to the raw query.
func (b *Backend) TextSearch(ctx context.Context, query string, limit int) ([]models.ScoredArticle, error) {
	body := buildTextQuery(query)
	hits, err := b.search(ctx, body, limit)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError("es_text", err)
	}

	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	results := make([]models.ScoredArticle, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		if maxScore > 0 {
			score = h.Score / maxScore
		}
		results = append(results, scoredFromHit(h, score, "text relevance", "es_text"))
	}
	return results, nil
}

// HybridSearch blends vector and text rankings. vectorWeight is the share of
// the vector score; the text score gets the remainder.
func (b *Backend) HybridSearch(ctx context.Context, query string, queryVector []float64, limit int, vectorWeight float64) ([]models.ScoredArticle, error) {
	vectorHits, err := b.VectorSearch(ctx, queryVector, limit*2)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError("es_hybrid", err)
	}
	textHits, err := b.TextSearch(ctx, query, limit*2)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError("es_hybrid", err)
	}

	merged := mergeHybrid(vectorHits, textHits, vectorWeight, "es_hybrid")
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

type esHit struct {
	ID     string
	Score  float64
	Source map[string]interface{}
}

func (b *Backend) search(ctx context.Context, body map[string]interface{}, limit int) ([]esHit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{b.index},
		Body:  strings.NewReader(string(payload)),
		Size:  &limit,
	}

	res, err := req.Do(ctx, b.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned status %s: %s", res.Status(), string(raw))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]esHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, esHit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

func buildVectorQuery(queryVector []float64) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"term": map[string]interface{}{"status": string(models.ArticleStatusPublished)},
				},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'content_vector') + 1.0",
					"params": map[string]interface{}{"query_vector": queryVector},
				},
			},
		},
	}
}

func buildTextQuery(query string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"title^2", "body", "tags"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"status": string(models.ArticleStatusPublished)},
					},
				},
			},
		},
	}
}

func scoredFromHit(h esHit, score float64, reason, method string) models.ScoredArticle {
	a := models.Article{ID: h.ID, Status: models.ArticleStatusPublished}
	if title, ok := h.Source["title"].(string); ok {
		a.Title = title
	}
	if body, ok := h.Source["body"].(string); ok {
		a.Body = body
	}
	if tags, ok := h.Source["tags"].([]interface{}); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				a.Tags = append(a.Tags, s)
			}
		}
	}
	return models.ScoredArticle{Article: a, Score: score, Reason: reason, Method: method}
}
