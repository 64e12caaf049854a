// Package suggestion owns the lifecycle of agent suggestions: creation by the
// pipeline, agent feedback, and aggregate performance metrics.
package suggestion

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/metrics"
	"helpdesk-workers/internal/common/validation"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/store"
)

const (
	metricsCacheKey = "metrics:suggestions"
	metricsCacheTTL = time.Minute

	agentTag = "triage-agent"
)

// TicketStore is the slice of ticket persistence feedback actions need.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	AppendReply(ctx context.Context, ticketID, authorID, body, agentTag string) (*models.TicketReply, error)
	Resolve(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTriage(ctx context.Context, id string, update store.TriageUpdate) (*models.Ticket, error)
}

// Persistence is the suggestion table access the service builds on.
type Persistence interface {
	Create(ctx context.Context, sg *models.AgentSuggestion) (*models.AgentSuggestion, error)
	GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error)
	RecordFeedback(ctx context.Context, ticketID string, action models.FeedbackAction, agentID, note string) error
	AggregateMetrics(ctx context.Context, since time.Time) (*models.SuggestionMetrics, error)
}

// Notifier delivers fire-and-forget notifications.
type Notifier interface {
	NotifyUser(userID, event string, payload map[string]interface{})
}

// Config holds the service thresholds.
type Config struct {
	AutoCloseConfidence float64
}

type Service struct {
	config      Config
	suggestions Persistence
	tickets     TicketStore
	notifier    Notifier
	cache       *redis.Client
	logger      logger.Logger
}

func NewService(config Config, suggestions Persistence, tickets TicketStore, notifier Notifier, cache *redis.Client, log logger.Logger) *Service {
	return &Service{
		config:      config,
		suggestions: suggestions,
		tickets:     tickets,
		notifier:    notifier,
		cache:       cache,
		logger:      log.WithFields(map[string]interface{}{"component": "suggestion-service"}),
	}
}

// Create validates and persists one suggestion per ticket. A duplicate fails
// with DUPLICATE_SUGGESTION; callers racing the pipeline may treat that as
// success.
func (s *Service) Create(ctx context.Context, sg *models.AgentSuggestion) (*models.AgentSuggestion, error) {
	err := validation.ValidateSuggestion(validation.SuggestionPayload{
		TicketID:          sg.TicketID,
		PredictedCategory: string(sg.PredictedCategory),
		DraftReply:        sg.DraftReply,
		Confidence:        sg.Confidence,
		CitedArticles:     sg.CitedArticles,
		AutoClosed:        sg.AutoClosed,
	}, s.config.AutoCloseConfidence)
	if err != nil {
		return nil, stderrors.NewValidationFailedError(err.Error())
	}

	created, err := s.suggestions.Create(ctx, sg)
	if err != nil {
		return nil, err
	}

	metrics.SuggestionsCreated.WithLabelValues(
		string(created.PredictedCategory), strconv.FormatBool(created.AutoClosed)).Inc()
	s.invalidateMetricsCache(ctx)
	return created, nil
}

// GetByTicketID returns the stored suggestion for a ticket, if any.
func (s *Service) GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error) {
	return s.suggestions.GetByTicketID(ctx, ticketID)
}

// Accept appends the draft (possibly edited by the agent) as a reply,
// resolves the ticket, and records whether the agent changed the text.
func (s *Service) Accept(ctx context.Context, ticketID, agentID string, editedReply *string) (*models.Ticket, *models.AgentSuggestion, error) {
	sg, err := s.suggestions.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	replyText := sg.DraftReply
	action := models.FeedbackAccept
	if editedReply != nil && *editedReply != sg.DraftReply {
		replyText = *editedReply
		action = models.FeedbackModify
	}

	if _, err := s.tickets.AppendReply(ctx, ticketID, agentID, replyText, agentTag); err != nil {
		return nil, nil, err
	}
	ticket, err := s.tickets.Resolve(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.suggestions.RecordFeedback(ctx, ticketID, action, agentID, ""); err != nil {
		return nil, nil, err
	}
	sg.FeedbackAction = action
	sg.FeedbackBy = agentID

	s.notifier.NotifyUser(ticket.CreatedBy, "ticket.resolved", map[string]interface{}{
		"ticketId": ticket.ID,
	})
	s.invalidateMetricsCache(ctx)
	return ticket, sg, nil
}

// Reject records negative feedback and queues the ticket for a human when it
// is still in the pipeline's hands.
func (s *Service) Reject(ctx context.Context, ticketID, agentID, feedback string) (*models.Ticket, *models.AgentSuggestion, error) {
	sg, err := s.suggestions.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.Status == models.TicketStatusOpen || ticket.Status == models.TicketStatusTriaged {
		waiting := models.TicketStatusWaitingHuman
		ticket, err = s.tickets.UpdateTriage(ctx, ticketID, store.TriageUpdate{Status: &waiting})
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.suggestions.RecordFeedback(ctx, ticketID, models.FeedbackReject, agentID, feedback); err != nil {
		return nil, nil, err
	}
	sg.FeedbackAction = models.FeedbackReject
	sg.FeedbackBy = agentID
	sg.FeedbackNote = feedback

	s.invalidateMetricsCache(ctx)
	return ticket, sg, nil
}

// Metrics aggregates suggestion performance. A zero window means all-time,
// which is cached for a minute; a positive window restricts the aggregation to
// suggestions created within it and always hits the store.
func (s *Service) Metrics(ctx context.Context, window time.Duration) (*models.SuggestionMetrics, error) {
	var since time.Time
	if window > 0 {
		since = time.Now().UTC().Add(-window)
	}

	if since.IsZero() && s.cache != nil {
		if raw, err := s.cache.Get(ctx, metricsCacheKey).Result(); err == nil {
			var cached models.SuggestionMetrics
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	aggregated, err := s.suggestions.AggregateMetrics(ctx, since)
	if err != nil {
		return nil, err
	}
	aggregated.Rating = ratingFor(aggregated)

	if since.IsZero() && s.cache != nil {
		if data, err := json.Marshal(aggregated); err == nil {
			if err := s.cache.Set(ctx, metricsCacheKey, data, metricsCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache suggestion metrics", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
	return aggregated, nil
}

func (s *Service) invalidateMetricsCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, metricsCacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate metrics cache", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ratingFor buckets the confidence-weighted average into a four-step grade.
func ratingFor(m *models.SuggestionMetrics) string {
	if m.Total == 0 {
		return "poor"
	}

	var weighted float64
	for _, cm := range m.ByCategory {
		weighted += cm.AvgConfidence * float64(cm.Count)
	}
	avg := weighted / float64(m.Total)

	switch {
	case avg >= 0.9:
		return "excellent"
	case avg >= 0.75:
		return "good"
	case avg >= 0.6:
		return "fair"
	default:
		return "poor"
	}
}
