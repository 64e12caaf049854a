// internal/pipeline/indexer_test.go
package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

type fakeArticles struct {
	byID map[string]*models.Article
}

func (f *fakeArticles) GetByID(ctx context.Context, id string) (*models.Article, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, stderrors.NewArticleNotFoundError(id)
	}
	return a, nil
}

func (f *fakeArticles) ListPublished(ctx context.Context) ([]models.Article, error) {
	var out []models.Article
	for _, a := range f.byID {
		if a.Status == models.ArticleStatusPublished {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	upserts   []string
	deletes   []string
	upsertErr map[string]error
}

func (f *fakeIndex) Upsert(ctx context.Context, articleID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[articleID]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, articleID)
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, articleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, articleID)
}

func newIndexerFixture(t *testing.T, articles map[string]*models.Article) (*Indexer, *fakeIndex) {
	t.Helper()
	index := &fakeIndex{upsertErr: map[string]error{}}
	ix := NewIndexer(&fakeArticles{byID: articles}, index, 16, 0, logger.Nop())
	return ix, index
}

func TestIndexer_UpsertPublishedArticle(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{
		"kb-1": {ID: "kb-1", Title: "Refunds", Body: "how to refund", Status: models.ArticleStatusPublished},
	})
	ix.Start()

	ix.UpsertEmbedding("kb-1")
	require.NoError(t, ix.Close(context.Background()))

	assert.Equal(t, []string{"kb-1"}, index.upserts)
	assert.Empty(t, index.deletes)
}

func TestIndexer_UnpublishedArticleDropsVectors(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{
		"kb-1": {ID: "kb-1", Status: models.ArticleStatusDraft},
	})
	ix.Start()

	ix.UpsertEmbedding("kb-1")
	require.NoError(t, ix.Close(context.Background()))

	assert.Empty(t, index.upserts)
	assert.Equal(t, []string{"kb-1"}, index.deletes)
}

func TestIndexer_MissingArticleDropsVectors(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{})
	ix.Start()

	ix.UpsertEmbedding("kb-gone")
	require.NoError(t, ix.Close(context.Background()))

	assert.Equal(t, []string{"kb-gone"}, index.deletes)
}

func TestIndexer_DeleteEmbedding(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{})
	ix.Start()

	ix.DeleteEmbedding("kb-1")
	require.NoError(t, ix.Close(context.Background()))

	assert.Equal(t, []string{"kb-1"}, index.deletes)
}

func TestIndexer_EnqueueAfterCloseIsSafe(t *testing.T) {
	ix, _ := newIndexerFixture(t, map[string]*models.Article{})
	ix.Start()
	require.NoError(t, ix.Close(context.Background()))

	assert.NotPanics(t, func() { ix.UpsertEmbedding("kb-1") })
}

func TestReindexAll(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{
		"kb-1": {ID: "kb-1", Title: "A", Body: "a", Status: models.ArticleStatusPublished},
		"kb-2": {ID: "kb-2", Title: "B", Body: "b", Status: models.ArticleStatusPublished},
		"kb-3": {ID: "kb-3", Title: "C", Body: "c", Status: models.ArticleStatusDraft},
	})

	count, err := ix.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, index.upserts, 2)
	assert.NotContains(t, index.upserts, "kb-3")
}

func TestReindexAll_SkipsFailures(t *testing.T) {
	ix, index := newIndexerFixture(t, map[string]*models.Article{
		"kb-1": {ID: "kb-1", Title: "A", Body: "a", Status: models.ArticleStatusPublished},
		"kb-2": {ID: "kb-2", Title: "B", Body: "b", Status: models.ArticleStatusPublished},
	})
	index.upsertErr["kb-1"] = assert.AnError

	count, err := ix.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"kb-2"}, index.upserts)
}

func TestReindexAll_HonorsCancellation(t *testing.T) {
	ix, _ := newIndexerFixture(t, map[string]*models.Article{
		"kb-1": {ID: "kb-1", Status: models.ArticleStatusPublished},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ix.ReindexAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
