// Package pipeline wires classification, retrieval, drafting, persistence and
// escalation into the end-to-end triage flow for one ticket.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/observability"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/retrieval"
)

const (
	modelProvider = "internal"
	modelName     = "keyword-classifier-v1"
	promptVersion = "v1"
)

// Retriever is the retrieval entry point the pipeline calls.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int, opts retrieval.Options) (*models.RAGResult, error)
}

// SuggestionWriter persists suggestions and reads back racing winners.
type SuggestionWriter interface {
	Create(ctx context.Context, sg *models.AgentSuggestion) (*models.AgentSuggestion, error)
	GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error)
}

// Escalator evaluates the rule chain for a ticket.
type Escalator interface {
	Evaluate(ctx context.Context, ticketID, traceID string) ([]models.EscalationContext, error)
}

// TicketStore is the ticket access the triage flow needs.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	AppendReply(ctx context.Context, ticketID, authorID, body, agentTag string) (*models.TicketReply, error)
	Resolve(ctx context.Context, id string) (*models.Ticket, error)
}

// Classifier produces the category prediction and the draft.
type Classifier interface {
	Classify(text string) models.ClassificationResult
}

// Drafter assembles the reply.
type Drafter interface {
	Draft(text string, articles []models.Article) models.DraftResult
}

// Notifier delivers fire-and-forget notifications.
type Notifier interface {
	NotifyUser(userID, event string, payload map[string]interface{})
}

// Auditor appends immutable trail events.
type Auditor interface {
	Append(ctx context.Context, ticketID, eventType, actor string, payload map[string]interface{}) error
}

// Config holds the triage thresholds.
type Config struct {
	AutoCloseConfidence float64
	RetrievalLimit      int
	MaxContextTokens    int
}

// Triage runs the full decision flow for single tickets.
type Triage struct {
	config      Config
	tickets     TicketStore
	classifier  Classifier
	drafter     Drafter
	retriever   Retriever
	suggestions SuggestionWriter
	escalation  Escalator
	notifier    Notifier
	audit       Auditor
	obs         *observability.Observability
	logger      logger.Logger
}

func NewTriage(
	config Config,
	tickets TicketStore,
	classifier Classifier,
	drafter Drafter,
	retriever Retriever,
	suggestions SuggestionWriter,
	escalation Escalator,
	notifier Notifier,
	audit Auditor,
	obs *observability.Observability,
	log logger.Logger,
) *Triage {
	return &Triage{
		config:      config,
		tickets:     tickets,
		classifier:  classifier,
		drafter:     drafter,
		retriever:   retriever,
		suggestions: suggestions,
		escalation:  escalation,
		notifier:    notifier,
		audit:       audit,
		obs:         obs,
		logger:      log.WithFields(map[string]interface{}{"component": "triage-pipeline"}),
	}
}

// Result reports what the pipeline decided for one ticket.
type Result struct {
	Suggestion *models.AgentSuggestion    `json:"suggestion"`
	AutoClosed bool                       `json:"autoClosed"`
	Escalated  []models.EscalationContext `json:"escalated,omitempty"`
	Method     string                     `json:"searchMethod"`
}

// Run triages one ticket end to end: classify, retrieve, draft, persist,
// then auto-close or escalate. Losing a creation race to a concurrent triage
// is treated as success: the winner's suggestion is returned.
func (t *Triage) Run(ctx context.Context, ticketID string) (*Result, error) {
	start := time.Now()
	traceID := uuid.NewString()

	ticket, err := t.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsTerminal() {
		t.logger.Info("skipping terminal ticket", map[string]interface{}{"ticketId": ticketID})
		return &Result{}, nil
	}

	text := ticket.Title + " " + ticket.Description
	classification := t.classifier.Classify(text)

	rag, err := t.retriever.Retrieve(ctx, text, t.config.RetrievalLimit, retrieval.Options{UseVectorSearch: true})
	if err != nil {
		return nil, err
	}
	if t.obs != nil {
		t.obs.RecordRetrieval(ctx, rag.SearchMethod)
	}

	rc := retrieval.BuildContext(text, rag.Articles, t.config.MaxContextTokens)
	draft := t.drafter.Draft(text, rc.Articles)
	autoClose := draft.Confidence >= t.config.AutoCloseConfidence

	created, err := t.suggestions.Create(ctx, &models.AgentSuggestion{
		TicketID:          ticketID,
		PredictedCategory: classification.Category,
		CitedArticles:     draft.CitedArticles,
		DraftReply:        draft.Reply,
		Confidence:        draft.Confidence,
		AutoClosed:        autoClose,
		Model: models.ModelInfo{
			Provider:      modelProvider,
			Model:         modelName,
			PromptVersion: promptVersion,
			LatencyMs:     time.Since(start).Milliseconds(),
		},
	})
	if err != nil {
		if errors.Is(err, stderrors.ErrDuplicateSuggestion) {
			existing, getErr := t.suggestions.GetByTicketID(ctx, ticketID)
			if getErr != nil {
				return nil, getErr
			}
			t.logger.Info("suggestion already exists, skipping side effects", map[string]interface{}{
				"ticketId": ticketID,
			})
			return &Result{Suggestion: existing, AutoClosed: existing.AutoClosed, Method: rag.SearchMethod}, nil
		}
		return nil, err
	}

	result := &Result{Suggestion: created, AutoClosed: autoClose, Method: rag.SearchMethod}

	if autoClose {
		if err := t.autoClose(ctx, ticket, created, traceID); err != nil {
			return nil, err
		}
	} else {
		contexts, err := t.escalation.Evaluate(ctx, ticketID, traceID)
		if err != nil {
			t.logger.Error("escalation evaluation failed", map[string]interface{}{
				"ticketId": ticketID,
				"error":    err.Error(),
			})
		} else {
			result.Escalated = contexts
		}
	}

	outcome := "escalated"
	if autoClose {
		outcome = "auto_closed"
	} else if len(result.Escalated) == 0 {
		outcome = "triaged"
	}
	if t.obs != nil {
		t.obs.RecordTriage(ctx, outcome)
		t.obs.RecordTriageDuration(ctx, time.Since(start), outcome)
	}

	t.logger.Info("ticket triaged", map[string]interface{}{
		"ticketId":   ticketID,
		"category":   string(classification.Category),
		"confidence": draft.Confidence,
		"outcome":    outcome,
		"method":     rag.SearchMethod,
		"tookMs":     time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (t *Triage) autoClose(ctx context.Context, ticket *models.Ticket, sg *models.AgentSuggestion, traceID string) error {
	if _, err := t.tickets.AppendReply(ctx, ticket.ID, "triage-agent", sg.DraftReply, "triage-agent"); err != nil {
		return err
	}
	if _, err := t.tickets.Resolve(ctx, ticket.ID); err != nil {
		return err
	}

	if err := t.audit.Append(ctx, ticket.ID, "auto_close", "triage-agent", map[string]interface{}{
		"confidence": sg.Confidence,
		"traceId":    traceID,
	}); err != nil {
		t.logger.Warn("audit append failed", map[string]interface{}{
			"ticketId": ticket.ID,
			"error":    err.Error(),
		})
	}

	t.notifier.NotifyUser(ticket.CreatedBy, "ticket.auto_closed", map[string]interface{}{
		"ticketId":   ticket.ID,
		"confidence": sg.Confidence,
	})
	return nil
}
