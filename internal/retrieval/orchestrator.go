// internal/retrieval/orchestrator.go
package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/metrics"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/similarity"
	"helpdesk-workers/internal/vectorizer"
)

// BackendSearcher is the managed-backend tier set.
type BackendSearcher interface {
	VectorSearch(ctx context.Context, queryVector []float64, limit int) ([]models.ScoredArticle, error)
	TextSearch(ctx context.Context, query string, limit int) ([]models.ScoredArticle, error)
	HybridSearch(ctx context.Context, query string, queryVector []float64, limit int, vectorWeight float64) ([]models.ScoredArticle, error)
}

// Availability reports whether the managed backend is worth trying.
type Availability interface {
	Available(ctx context.Context) bool
	Refresh(ctx context.Context) bool
}

// ArticleReader hydrates similarity matches into full articles.
type ArticleReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Article, error)
	ListPublished(ctx context.Context) ([]models.Article, error)
}

// Config holds the orchestrator tuning knobs.
type Config struct {
	DefaultLimit        int
	HybridVectorWeight  float64
	SimilarityThreshold float64
}

// Options modify a single retrieval request.
type Options struct {
	// UseVectorSearch enables the managed-backend vector tier. The hybrid and
	// text tiers run regardless.
	UseVectorSearch bool
	// ForceBackend disables local fallback. The request fails with
	// BACKEND_UNAVAILABLE instead of degrading.
	ForceBackend bool
}

// Orchestrator walks search tiers from best to cheapest until one returns an
// acceptable result set. Tier failures are logged and absorbed; a retrieval
// only errors when the caller insisted on the managed backend.
type Orchestrator struct {
	config     Config
	backend    BackendSearcher
	probe      Availability
	similarity *similarity.Store
	vectorizer *vectorizer.Vectorizer
	articles   ArticleReader
	logger     logger.Logger
}

func NewOrchestrator(
	config Config,
	backend BackendSearcher,
	probe Availability,
	sim *similarity.Store,
	v *vectorizer.Vectorizer,
	articles ArticleReader,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		backend:    backend,
		probe:      probe,
		similarity: sim,
		vectorizer: v,
		articles:   articles,
		logger:     log.WithFields(map[string]interface{}{"component": "retrieval-orchestrator"}),
	}
}

type tier struct {
	name string
	// Vector tiers advance the chain when under-filled; every other tier
	// advances it only when empty.
	vector bool
	run    func(ctx context.Context) ([]models.ScoredArticle, error)
}

// Retrieve runs the fallback chain for one query.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, limit int, opts Options) (*models.RAGResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return &models.RAGResult{
			Articles:        []models.ScoredArticle{},
			Query:           query,
			SearchMethod:    "keyword",
			TotalMatches:    0,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	if limit <= 0 {
		limit = o.config.DefaultLimit
	}
	// A tier counts as sufficient when it fills at least half the ask.
	minAcceptable := (limit + 1) / 2

	queryVector, err := o.vectorizer.Embed(query)
	if err != nil {
		return nil, err
	}

	backendUp := false
	if o.backend != nil && o.probe != nil {
		if opts.ForceBackend {
			backendUp = o.probe.Refresh(ctx)
		} else {
			backendUp = o.probe.Available(ctx)
		}
	}
	if opts.ForceBackend && !backendUp {
		return nil, stderrors.NewBackendUnavailableError(nil)
	}

	tiers := o.tiersFor(query, queryVector, limit, backendUp, opts)

	var best []models.ScoredArticle
	bestMethod := "keyword"
	var lastErr error

	for _, tr := range tiers {
		results, err := tr.run(ctx)
		if err != nil {
			lastErr = err
			metrics.SearchTierFailures.WithLabelValues(tr.name).Inc()
			o.logger.Warn("search tier failed, falling through", map[string]interface{}{
				"tier":  tr.name,
				"error": err.Error(),
			})
			continue
		}

		if !tr.vector {
			// Non-vector tiers win with anything at all.
			if len(results) > 0 {
				return o.finish(results, query, tr.name, start, backendUp), nil
			}
			continue
		}

		if len(results) >= minAcceptable {
			return o.finish(results, query, tr.name, start, backendUp), nil
		}
		if len(results) > len(best) {
			best = results
			bestMethod = tr.name
		}
	}

	if opts.ForceBackend && len(best) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return o.finish(best, query, bestMethod, start, backendUp), nil
}

func (o *Orchestrator) tiersFor(query string, queryVector []float64, limit int, backendUp bool, opts Options) []tier {
	var tiers []tier

	if backendUp {
		if opts.UseVectorSearch {
			tiers = append(tiers,
				tier{"es_vector", true, func(ctx context.Context) ([]models.ScoredArticle, error) {
					return o.backend.VectorSearch(ctx, queryVector, limit)
				}},
			)
		}
		tiers = append(tiers,
			tier{"es_hybrid", false, func(ctx context.Context) ([]models.ScoredArticle, error) {
				return o.backend.HybridSearch(ctx, query, queryVector, limit, o.config.HybridVectorWeight)
			}},
			tier{"es_text", false, func(ctx context.Context) ([]models.ScoredArticle, error) {
				return o.backend.TextSearch(ctx, query, limit)
			}},
		)
	}
	if opts.ForceBackend {
		return tiers
	}

	tiers = append(tiers,
		tier{"local_vector", true, func(ctx context.Context) ([]models.ScoredArticle, error) {
			return o.localVector(ctx, queryVector, limit)
		}},
		tier{"local_hybrid", false, func(ctx context.Context) ([]models.ScoredArticle, error) {
			return o.localHybrid(ctx, query, queryVector, limit)
		}},
		tier{"keyword", false, func(ctx context.Context) ([]models.ScoredArticle, error) {
			return o.keywordSearch(ctx, query, limit)
		}},
	)
	return tiers
}

func (o *Orchestrator) finish(results []models.ScoredArticle, query, method string, start time.Time, backendUp bool) *models.RAGResult {
	if results == nil {
		results = []models.ScoredArticle{}
	}
	metrics.SearchTierUsed.WithLabelValues(method).Inc()
	return &models.RAGResult{
		Articles:        results,
		Query:           query,
		SearchMethod:    method,
		TotalMatches:    len(results),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		BackendMetadata: map[string]interface{}{
			"backendAvailable": backendUp,
		},
	}
}

func (o *Orchestrator) localVector(ctx context.Context, queryVector []float64, limit int) ([]models.ScoredArticle, error) {
	matches := o.similarity.FindSimilar(queryVector, limit, o.config.SimilarityThreshold)
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ArticleID)
	}
	articles, err := o.articles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.ScoredArticle, 0, len(matches))
	for _, m := range matches {
		a, ok := articles[m.ArticleID]
		if !ok || a.Status != models.ArticleStatusPublished {
			continue
		}
		results = append(results, models.ScoredArticle{
			Article: a,
			Score:   m.Score,
			Reason:  m.Reason,
			Method:  "local_vector",
		})
	}
	return results, nil
}

func (o *Orchestrator) localHybrid(ctx context.Context, query string, queryVector []float64, limit int) ([]models.ScoredArticle, error) {
	subLimit := int(math.Ceil(0.7 * float64(limit)))
	vectorHits, err := o.localVector(ctx, queryVector, subLimit)
	if err != nil {
		return nil, err
	}
	keywordHits, err := o.keywordSearch(ctx, query, subLimit)
	if err != nil {
		return nil, err
	}

	merged := mergeHybrid(vectorHits, keywordHits, o.config.HybridVectorWeight, "local_hybrid")
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (o *Orchestrator) keywordSearch(ctx context.Context, query string, limit int) ([]models.ScoredArticle, error) {
	articles, err := o.articles.ListPublished(ctx)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	var results []models.ScoredArticle
	for _, a := range articles {
		score := keywordScore(words, &a)
		if score <= 0 {
			continue
		}
		results = append(results, models.ScoredArticle{
			Article: a,
			Score:   score,
			Reason:  "keyword overlap",
			Method:  "keyword",
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordScore counts query words found in the article, title matches counting
// double, body and tag matches single, normalized into [0,1].
func keywordScore(words []string, a *models.Article) float64 {
	title := strings.ToLower(a.Title)
	body := strings.ToLower(a.Body)
	tags := strings.ToLower(strings.Join(a.Tags, " "))

	score := 0.0
	for _, w := range words {
		switch {
		case strings.Contains(title, w):
			score += 2
		case strings.Contains(body, w):
			score += 1
		case strings.Contains(tags, w):
			score += 1
		}
	}
	return score / float64(2*len(words))
}

// mergeHybrid combines two rankings of the same corpus. An article appearing
// in only one list keeps its weighted share from that list.
func mergeHybrid(vectorHits, textHits []models.ScoredArticle, vectorWeight float64, method string) []models.ScoredArticle {
	type entry struct {
		article models.Article
		score   float64
	}
	combined := make(map[string]*entry)

	for _, h := range vectorHits {
		combined[h.Article.ID] = &entry{article: h.Article, score: vectorWeight * h.Score}
	}
	for _, h := range textHits {
		if e, ok := combined[h.Article.ID]; ok {
			e.score += (1 - vectorWeight) * h.Score
		} else {
			combined[h.Article.ID] = &entry{article: h.Article, score: (1 - vectorWeight) * h.Score}
		}
	}

	merged := make([]models.ScoredArticle, 0, len(combined))
	for _, e := range combined {
		merged = append(merged, models.ScoredArticle{
			Article: e.article,
			Score:   e.score,
			Reason:  "vector and text blend",
			Method:  method,
		})
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}
