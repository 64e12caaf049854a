// Package store is the Postgres persistence layer. Each store owns one table
// family and translates sql errors into the service error taxonomy.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

type ArticleStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewArticleStore(db *sql.DB, log logger.Logger) *ArticleStore {
	return &ArticleStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "articles"}),
	}
}

func (s *ArticleStore) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	var tags pq.StringArray

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, tags, status, created_at, updated_at
		FROM articles
		WHERE id = $1`, id).Scan(
		&a.ID, &a.Title, &a.Body, &tags, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewArticleNotFoundError(id)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseError("get article", err)
	}

	a.Tags = tags
	return &a, nil
}

// GetByIDs loads a batch of articles, silently skipping unknown ids. Callers
// hydrating search hits tolerate articles deleted since indexing.
func (s *ArticleStore) GetByIDs(ctx context.Context, ids []string) (map[string]models.Article, error) {
	out := make(map[string]models.Article, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, tags, status, created_at, updated_at
		FROM articles
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, stderrors.NewDatabaseError("get articles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Article
		var tags pq.StringArray
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &tags, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, stderrors.NewDatabaseError("scan article", err)
		}
		a.Tags = tags
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseError("iterate articles", err)
	}
	return out, nil
}

// ListPublished returns every published article, oldest first. Used by the
// local keyword tier and by full reindexing.
func (s *ArticleStore) ListPublished(ctx context.Context) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, tags, status, created_at, updated_at
		FROM articles
		WHERE status = $1
		ORDER BY created_at ASC`, models.ArticleStatusPublished)
	if err != nil {
		return nil, stderrors.NewDatabaseError("list published articles", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		var tags pq.StringArray
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &tags, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, stderrors.NewDatabaseError("scan article", err)
		}
		a.Tags = tags
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseError("iterate articles", err)
	}
	return articles, nil
}
