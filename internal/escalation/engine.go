// internal/escalation/engine.go
package escalation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/metrics"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/store"
)

// TicketStore is the slice of ticket persistence the engine needs.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	ListOpenForSweep(ctx context.Context, limit int) ([]models.Ticket, error)
	UpdateTriage(ctx context.Context, id string, update store.TriageUpdate) (*models.Ticket, error)
}

// SuggestionReader loads the suggestion attached to a ticket, if any.
type SuggestionReader interface {
	GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error)
}

// UserDirectory resolves escalation targets.
type UserDirectory interface {
	FirstAvailableAdmin(ctx context.Context) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	NotifyUser(userID, event string, payload map[string]interface{})
}

// Auditor appends immutable trail events.
type Auditor interface {
	Append(ctx context.Context, ticketID, eventType, actor string, payload map[string]interface{}) error
}

// Config holds the engine thresholds.
type Config struct {
	Enabled            bool
	SLAHours           float64
	LowConfidence      float64
	CriticalConfidence float64
	SweepBatchSize     int
}

// SweepResult summarizes one periodic pass.
type SweepResult struct {
	Processed int `json:"processed"`
	Escalated int `json:"escalated"`
}

// Engine evaluates the rule set against tickets. Rules are fixed at
// construction and evaluated highest priority first; the first match is the
// only one applied.
type Engine struct {
	config      Config
	rules       []Rule
	deps        *Deps
	suggestions SuggestionReader
	logger      logger.Logger
	now         func() time.Time

	// sweepMu serializes periodic sweeps; an overlapping invocation is
	// skipped rather than queued.
	sweepMu sync.Mutex
}

func NewEngine(config Config, deps *Deps, suggestions SuggestionReader, log logger.Logger) *Engine {
	rules := BuiltinRules(config.SLAHours, config.LowConfidence, config.CriticalConfidence)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority() > rules[j].Priority() })

	return &Engine{
		config:      config,
		rules:       rules,
		deps:        deps,
		suggestions: suggestions,
		logger:      log.WithFields(map[string]interface{}{"component": "escalation-engine"}),
		now:         time.Now,
	}
}

// Evaluate runs the rule chain for one ticket. At most one rule fires; a
// failing action still halts the chain because the rule was chosen.
func (e *Engine) Evaluate(ctx context.Context, ticketID, traceID string) ([]models.EscalationContext, error) {
	if !e.config.Enabled {
		return []models.EscalationContext{}, nil
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}

	ticket, err := e.deps.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	suggestion, err := e.suggestions.GetByTicketID(ctx, ticketID)
	if err != nil && !errors.Is(err, stderrors.ErrSuggestionNotFound) {
		return nil, err
	}

	now := e.now()
	for _, rule := range e.rules {
		if !rule.Matches(ticket, suggestion, now) {
			continue
		}

		ec := models.EscalationContext{
			TraceID:   traceID,
			Initiator: "escalation-engine",
			Rule:      rule.Name(),
			CreatedAt: now,
		}
		if err := rule.Apply(ctx, e.deps, ticket, suggestion, &ec); err != nil {
			e.logger.Error("escalation action failed", map[string]interface{}{
				"rule":     rule.Name(),
				"ticketId": ticketID,
				"traceId":  traceID,
				"error":    err.Error(),
			})
		}
		metrics.EscalationsFired.WithLabelValues(rule.Name()).Inc()

		e.logger.Info("escalation rule fired", map[string]interface{}{
			"rule":     rule.Name(),
			"ticketId": ticketID,
			"reason":   ec.Reason,
		})
		return []models.EscalationContext{ec}, nil
	}

	return []models.EscalationContext{}, nil
}

// RunPeriodicSweep evaluates a batch of waiting tickets. Overlapping sweeps
// are skipped; per-ticket failures are logged and do not stop the batch.
func (e *Engine) RunPeriodicSweep(ctx context.Context) (SweepResult, error) {
	if !e.sweepMu.TryLock() {
		e.logger.Warn("sweep already running, skipping", nil)
		return SweepResult{}, nil
	}
	defer e.sweepMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var result SweepResult
	if !e.config.Enabled {
		return result, nil
	}

	tickets, err := e.deps.Tickets.ListOpenForSweep(ctx, e.config.SweepBatchSize)
	if err != nil {
		return result, err
	}

	traceID := uuid.NewString()
	for _, t := range tickets {
		result.Processed++
		contexts, err := e.Evaluate(ctx, t.ID, traceID)
		if err != nil {
			e.logger.Warn("sweep skipping ticket", map[string]interface{}{
				"ticketId": t.ID,
				"error":    err.Error(),
			})
			continue
		}
		if len(contexts) > 0 {
			result.Escalated++
		}
	}

	e.logger.Info("escalation sweep finished", map[string]interface{}{
		"processed": result.Processed,
		"escalated": result.Escalated,
		"tookMs":    time.Since(start).Milliseconds(),
	})
	return result, nil
}
