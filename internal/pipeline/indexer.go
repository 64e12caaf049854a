// internal/pipeline/indexer.go
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/metrics"
	"helpdesk-workers/internal/models"
)

// ArticleReader loads articles for embedding.
type ArticleReader interface {
	GetByID(ctx context.Context, id string) (*models.Article, error)
	ListPublished(ctx context.Context) ([]models.Article, error)
}

// EmbeddingIndex is the similarity store surface the indexer drives.
type EmbeddingIndex interface {
	Upsert(ctx context.Context, articleID, content string) error
	Delete(ctx context.Context, articleID string)
}

type indexOp struct {
	articleID string
	remove    bool
}

// Indexer keeps article embeddings in sync with article content. Callers fire
// and forget; a single background worker applies operations in order, which
// also bounds load on the embedding path.
type Indexer struct {
	articles   ArticleReader
	index      EmbeddingIndex
	batchPause time.Duration
	logger     logger.Logger

	ch     chan indexOp
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewIndexer(articles ArticleReader, index EmbeddingIndex, queueSize int, batchPause time.Duration, log logger.Logger) *Indexer {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Indexer{
		articles:   articles,
		index:      index,
		batchPause: batchPause,
		logger:     log.WithFields(map[string]interface{}{"component": "embedding-indexer"}),
		ch:         make(chan indexOp, queueSize),
	}
}

// Start launches the background worker.
func (ix *Indexer) Start() {
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		for op := range ix.ch {
			ix.apply(op)
		}
	}()
}

// UpsertEmbedding schedules a (re-)embed of one article. Non-blocking; the
// caller does not learn the outcome.
func (ix *Indexer) UpsertEmbedding(articleID string) {
	ix.enqueue(indexOp{articleID: articleID})
}

// DeleteEmbedding schedules removal of one article's vectors.
func (ix *Indexer) DeleteEmbedding(articleID string) {
	ix.enqueue(indexOp{articleID: articleID, remove: true})
}

func (ix *Indexer) enqueue(op indexOp) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return
	}
	select {
	case ix.ch <- op:
	default:
		ix.logger.Warn("embedding queue full, dropping operation", map[string]interface{}{
			"articleId": op.articleID,
			"remove":    op.remove,
		})
		metrics.EmbeddingUpserts.WithLabelValues("dropped").Inc()
	}
}

// Close stops the worker after draining queued operations.
func (ix *Indexer) Close(ctx context.Context) error {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil
	}
	ix.closed = true
	close(ix.ch)
	ix.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ix.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ix *Indexer) apply(op indexOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if op.remove {
		ix.index.Delete(ctx, op.articleID)
		metrics.EmbeddingUpserts.WithLabelValues("deleted").Inc()
		return
	}

	article, err := ix.articles.GetByID(ctx, op.articleID)
	if err != nil {
		if errors.Is(err, stderrors.ErrArticleNotFound) {
			// The article vanished between the trigger and the worker run.
			ix.index.Delete(ctx, op.articleID)
			metrics.EmbeddingUpserts.WithLabelValues("deleted").Inc()
			return
		}
		ix.logger.Error("embedding upsert failed to load article", map[string]interface{}{
			"articleId": op.articleID,
			"error":     err.Error(),
		})
		metrics.EmbeddingUpserts.WithLabelValues("failed").Inc()
		return
	}

	if article.Status != models.ArticleStatusPublished {
		ix.index.Delete(ctx, op.articleID)
		metrics.EmbeddingUpserts.WithLabelValues("unpublished").Inc()
		return
	}

	if err := ix.index.Upsert(ctx, article.ID, article.Content()); err != nil {
		ix.logger.Error("embedding upsert failed", map[string]interface{}{
			"articleId": op.articleID,
			"error":     err.Error(),
		})
		metrics.EmbeddingUpserts.WithLabelValues("failed").Inc()
		return
	}
	metrics.EmbeddingUpserts.WithLabelValues("ok").Inc()
}

// ReindexAll re-embeds every published article sequentially, pausing between
// items to bound load. Per-article failures are logged and skipped. Returns
// the number of articles successfully indexed.
func (ix *Indexer) ReindexAll(ctx context.Context) (int, error) {
	articles, err := ix.articles.ListPublished(ctx)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for i, article := range articles {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := ix.index.Upsert(ctx, article.ID, article.Content()); err != nil {
			ix.logger.Warn("reindex skipping article", map[string]interface{}{
				"articleId": article.ID,
				"error":     err.Error(),
			})
			continue
		}
		indexed++
		if ix.batchPause > 0 && i < len(articles)-1 {
			select {
			case <-time.After(ix.batchPause):
			case <-ctx.Done():
				return indexed, ctx.Err()
			}
		}
	}

	ix.logger.Info("reindex complete", map[string]interface{}{
		"indexed": indexed,
		"total":   len(articles),
	})
	return indexed, nil
}
