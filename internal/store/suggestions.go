// internal/store/suggestions.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

// uniqueViolation is the Postgres error code raised by the one-suggestion-per-
// ticket constraint.
const uniqueViolation = "23505"

type SuggestionStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSuggestionStore(db *sql.DB, log logger.Logger) *SuggestionStore {
	return &SuggestionStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "suggestions"}),
	}
}

// Create persists a new suggestion. A second suggestion for the same ticket
// fails with DUPLICATE_SUGGESTION.
func (s *SuggestionStore) Create(ctx context.Context, sg *models.AgentSuggestion) (*models.AgentSuggestion, error) {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sg.CreatedAt = now
	sg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_suggestions
			(id, ticket_id, predicted_category, cited_articles, draft_reply, confidence,
			 auto_closed, model_provider, model_name, prompt_version, latency_ms,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sg.ID, sg.TicketID, sg.PredictedCategory, pq.Array(sg.CitedArticles),
		sg.DraftReply, sg.Confidence, sg.AutoClosed,
		sg.Model.Provider, sg.Model.Model, sg.Model.PromptVersion, sg.Model.LatencyMs,
		sg.CreatedAt, sg.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, stderrors.NewDuplicateSuggestionError(sg.TicketID)
		}
		return nil, stderrors.NewDatabaseError("create suggestion", err)
	}
	return sg, nil
}

// GetByTicketID returns the suggestion for a ticket.
func (s *SuggestionStore) GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error) {
	var sg models.AgentSuggestion
	var cited pq.StringArray
	var action, feedbackBy, feedbackNote sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, predicted_category, cited_articles, draft_reply, confidence,
		       auto_closed, model_provider, model_name, prompt_version, latency_ms,
		       feedback_action, feedback_by, feedback_note, created_at, updated_at
		FROM agent_suggestions
		WHERE ticket_id = $1`, ticketID).Scan(
		&sg.ID, &sg.TicketID, &sg.PredictedCategory, &cited, &sg.DraftReply, &sg.Confidence,
		&sg.AutoClosed, &sg.Model.Provider, &sg.Model.Model, &sg.Model.PromptVersion, &sg.Model.LatencyMs,
		&action, &feedbackBy, &feedbackNote, &sg.CreatedAt, &sg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewSuggestionNotFoundError(ticketID)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseError("get suggestion", err)
	}

	sg.CitedArticles = cited
	sg.FeedbackAction = models.FeedbackAction(action.String)
	sg.FeedbackBy = feedbackBy.String
	sg.FeedbackNote = feedbackNote.String
	return &sg, nil
}

// RecordFeedback sets the feedback fields. Prediction fields stay untouched.
func (s *SuggestionStore) RecordFeedback(ctx context.Context, ticketID string, action models.FeedbackAction, agentID, note string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_suggestions
		SET feedback_action = $2, feedback_by = $3, feedback_note = $4, updated_at = $5
		WHERE ticket_id = $1`,
		ticketID, action, agentID, sql.NullString{String: note, Valid: note != ""}, time.Now().UTC())
	if err != nil {
		return stderrors.NewDatabaseError("record feedback", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewSuggestionNotFoundError(ticketID)
	}
	return nil
}

// AggregateMetrics computes totals and per-category breakdowns in one pass.
// A zero `since` aggregates all-time; otherwise only suggestions created at or
// after it count.
func (s *SuggestionStore) AggregateMetrics(ctx context.Context, since time.Time) (*models.SuggestionMetrics, error) {
	query := `
		SELECT predicted_category,
		       COUNT(*),
		       COALESCE(AVG(confidence), 0),
		       COUNT(*) FILTER (WHERE auto_closed)
		FROM agent_suggestions`
	var args []interface{}
	if !since.IsZero() {
		query += `
		WHERE created_at >= $1`
		args = append(args, since)
	}
	query += `
		GROUP BY predicted_category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewDatabaseError("aggregate suggestion metrics", err)
	}
	defer rows.Close()

	metrics := &models.SuggestionMetrics{
		ByCategory: make(map[models.TicketCategory]models.CategoryMetrics),
	}
	for rows.Next() {
		var category models.TicketCategory
		var count, autoClosed int
		var avgConfidence float64
		if err := rows.Scan(&category, &count, &avgConfidence, &autoClosed); err != nil {
			return nil, stderrors.NewDatabaseError("scan suggestion metrics", err)
		}

		cm := models.CategoryMetrics{Count: count, AvgConfidence: avgConfidence}
		if count > 0 {
			cm.AutoCloseRate = float64(autoClosed) / float64(count)
		}
		metrics.ByCategory[category] = cm
		metrics.Total += count
		metrics.AutoClosed += autoClosed
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseError("iterate suggestion metrics", err)
	}

	if metrics.Total > 0 {
		metrics.AutoCloseRate = float64(metrics.AutoClosed) / float64(metrics.Total)
	}
	return metrics, nil
}
