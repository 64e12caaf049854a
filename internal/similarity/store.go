// Package similarity owns per-article embeddings and answers nearest-neighbor
// queries against them. The working set lives in memory; Redis keeps a copy so
// a restarted process can rebuild the index without re-embedding everything.
package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/vectorizer"
)

const keyPrefix = "embedding:article:"

// Config holds the similarity store settings.
type Config struct {
	Dimension           int
	ChunkSize           int
	ChunkOverlap        int
	ChunkThreshold      int
	SimilarityThreshold float64
	ModelTag            string
}

// Store indexes one ArticleEmbedding per published article.
type Store struct {
	config     Config
	vectorizer *vectorizer.Vectorizer
	redis      *redis.Client
	logger     logger.Logger

	mu      sync.RWMutex
	records map[string]*models.ArticleEmbedding
}

func NewStore(config Config, v *vectorizer.Vectorizer, rdb *redis.Client, log logger.Logger) *Store {
	return &Store{
		config:     config,
		vectorizer: v,
		redis:      rdb,
		logger:     log.WithFields(map[string]interface{}{"component": "similarity-store"}),
		records:    make(map[string]*models.ArticleEmbedding),
	}
}

// Warm rebuilds the in-memory index from Redis. Missing or corrupt entries are
// skipped; a cold cache just means re-embedding on the next upsert.
func (s *Store) Warm(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	var cursor uint64
	loaded := 0
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			raw, err := s.redis.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var rec models.ArticleEmbedding
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				s.logger.Warn("skipping corrupt cached embedding", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
				continue
			}
			rec.Vector = vectorizer.FitDimension(rec.Vector, s.config.Dimension)
			s.mu.Lock()
			s.records[rec.ArticleID] = &rec
			s.mu.Unlock()
			loaded++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Info("similarity index warmed", map[string]interface{}{"articles": loaded})
	return nil
}

// Upsert (re-)embeds an article's content. It is a no-op when the stored
// record already matches the content. Long content also gets chunk vectors.
func (s *Store) Upsert(ctx context.Context, articleID, content string) error {
	hash := contentHash(content)

	s.mu.RLock()
	existing, ok := s.records[articleID]
	s.mu.RUnlock()
	if ok && existing.ContentHash == hash {
		return nil
	}

	vec, err := s.vectorizer.Embed(content)
	if err != nil {
		return err
	}
	vec = vectorizer.FitDimension(vec, s.config.Dimension)

	rec := &models.ArticleEmbedding{
		ArticleID:   articleID,
		Vector:      vec,
		ModelTag:    s.config.ModelTag,
		ContentHash: hash,
		LastUpdated: time.Now().UTC(),
	}

	if len(content) > s.config.ChunkThreshold {
		for _, sp := range vectorizer.ChunkSpans(content, s.config.ChunkSize, s.config.ChunkOverlap) {
			text := content[sp.Start:sp.End]
			cvec, err := s.vectorizer.Embed(text)
			if err != nil {
				// Per-chunk isolation: the article vector still stands.
				continue
			}
			rec.Chunks = append(rec.Chunks, models.Chunk{
				Text:   text,
				Vector: vectorizer.FitDimension(cvec, s.config.Dimension),
				Start:  sp.Start,
				End:    sp.End,
			})
		}
	}

	s.mu.Lock()
	s.records[articleID] = rec
	s.mu.Unlock()

	s.persist(ctx, rec)
	return nil
}

// Delete removes an article's embeddings. Idempotent.
func (s *Store) Delete(ctx context.Context, articleID string) {
	s.mu.Lock()
	delete(s.records, articleID)
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, keyPrefix+articleID).Err(); err != nil {
			s.logger.Warn("failed to drop cached embedding", map[string]interface{}{
				"articleId": articleID,
				"error":     err.Error(),
			})
		}
	}
}

// Match is a raw similarity hit before article hydration.
type Match struct {
	ArticleID string
	Score     float64
	Reason    string
}

// FindSimilar scores the query vector against every indexed article, keeps
// hits at or above threshold, and returns the top `limit` in descending order.
// For chunked articles the best chunk score can stand in for the whole
// article.
func (s *Store) FindSimilar(queryVector []float64, limit int, threshold float64) []Match {
	queryVector = vectorizer.FitDimension(queryVector, s.config.Dimension)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.records))
	for id, rec := range s.records {
		score, err := vectorizer.CosineSimilarity(queryVector, rec.Vector)
		if err != nil {
			continue
		}
		reason := "matched article content"

		for _, chunk := range rec.Chunks {
			cs, err := vectorizer.CosineSimilarity(queryVector, chunk.Vector)
			if err == nil && cs > score {
				score = cs
				reason = "matched article section"
			}
		}

		if score >= threshold {
			matches = append(matches, Match{ArticleID: id, Score: score, Reason: reason})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Has reports whether an article is indexed.
func (s *Store) Has(articleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[articleID]
	return ok
}

// Size returns the number of indexed articles.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) persist(ctx context.Context, rec *models.ArticleEmbedding) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, keyPrefix+rec.ArticleID, data, 0).Err(); err != nil {
		s.logger.Warn("failed to cache embedding", map[string]interface{}{
			"articleId": rec.ArticleID,
			"error":     err.Error(),
		})
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
