// internal/escalation/engine_test.go
package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/store"
)

type fakeTickets struct {
	tickets   map[string]*models.Ticket
	updateErr error
	getErr    map[string]error
}

func (f *fakeTickets) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTickets) ListOpenForSweep(ctx context.Context, limit int) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if len(out) == limit {
			break
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTickets) UpdateTriage(ctx context.Context, id string, update store.TriageUpdate) (*models.Ticket, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	if t.IsTerminal() {
		copied := *t
		return &copied, nil
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	if update.AssigneeID != nil {
		t.AssigneeID = *update.AssigneeID
	}
	copied := *t
	return &copied, nil
}

type fakeSuggestions struct {
	byTicket map[string]*models.AgentSuggestion
}

func (f *fakeSuggestions) GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error) {
	s, ok := f.byTicket[ticketID]
	if !ok {
		return nil, stderrors.NewSuggestionNotFoundError(ticketID)
	}
	return s, nil
}

type fakeUsers struct {
	admins []models.User
}

func (f *fakeUsers) FirstAvailableAdmin(ctx context.Context) (*models.User, error) {
	for _, a := range f.admins {
		if a.Available {
			admin := a
			return &admin, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) ListAdmins(ctx context.Context) ([]models.User, error) {
	return f.admins, nil
}

type notification struct {
	UserID string
	Event  string
}

type fakeNotifier struct {
	sent []notification
}

func (f *fakeNotifier) NotifyUser(userID, event string, payload map[string]interface{}) {
	f.sent = append(f.sent, notification{UserID: userID, Event: event})
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Append(ctx context.Context, ticketID, eventType, actor string, payload map[string]interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

type fixture struct {
	engine   *Engine
	tickets  *fakeTickets
	users    *fakeUsers
	notifier *fakeNotifier
	audit    *fakeAudit
}

func newFixture(t *testing.T, tickets map[string]*models.Ticket, suggestions map[string]*models.AgentSuggestion) *fixture {
	t.Helper()

	f := &fixture{
		tickets: &fakeTickets{tickets: tickets, getErr: map[string]error{}},
		users: &fakeUsers{admins: []models.User{
			{ID: "admin-1", Role: models.RoleAdmin, Available: true},
			{ID: "admin-2", Role: models.RoleAdmin, Available: false},
		}},
		notifier: &fakeNotifier{},
		audit:    &fakeAudit{},
	}

	cfg := Config{
		Enabled:            true,
		SLAHours:           24,
		LowConfidence:      0.5,
		CriticalConfidence: 0.35,
		SweepBatchSize:     100,
	}
	f.engine = NewEngine(cfg, &Deps{
		Tickets:  f.tickets,
		Users:    f.users,
		Notifier: f.notifier,
		Audit:    f.audit,
	}, &fakeSuggestions{byTicket: suggestions}, logger.Nop())
	return f
}

func ticket(id string, status models.TicketStatus, age time.Duration) *models.Ticket {
	return &models.Ticket{
		ID:        id,
		Title:     "title",
		Category:  models.CategoryBilling,
		Status:    status,
		Priority:  models.PriorityNormal,
		CreatedBy: "user-1",
		CreatedAt: time.Now().Add(-age),
	}
}

func suggestion(ticketID string, category models.TicketCategory, confidence float64) *models.AgentSuggestion {
	return &models.AgentSuggestion{
		ID:                "sug-" + ticketID,
		TicketID:          ticketID,
		PredictedCategory: category,
		Confidence:        confidence,
	}
}

func TestEvaluate_Disabled(t *testing.T) {
	f := newFixture(t, map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)}, nil)
	f.engine.config.Enabled = false

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestEvaluate_CriticalConfidence(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryBilling, 0.2)},
	)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)

	// Exactly one rule fires even though the low-confidence rule's range is
	// adjacent.
	require.Len(t, contexts, 1)
	assert.Equal(t, "critical_confidence", contexts[0].Rule)
	assert.Equal(t, models.PriorityUrgent, f.tickets.tickets["t-1"].Priority)
	assert.Equal(t, models.TicketStatusTriaged, f.tickets.tickets["t-1"].Status)

	// Every admin is told, available or not.
	assert.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "ticket.needs_attention", f.notifier.sent[0].Event)
}

func TestEvaluate_LowConfidenceAssignsAdmin(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryBilling, 0.45)},
	)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "low_confidence", contexts[0].Rule)
	assert.Equal(t, "admin-1", contexts[0].TargetID)

	updated := f.tickets.tickets["t-1"]
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, "admin-1", updated.AssigneeID)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification{UserID: "admin-1", Event: "ticket.assigned"}, f.notifier.sent[0])
}

func TestEvaluate_SLABreachOutranksConfidence(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, 48*time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryBilling, 0.2)},
	)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "sla_breach", contexts[0].Rule)
	assert.Equal(t, models.PriorityUrgent, f.tickets.tickets["t-1"].Priority)
}

func TestEvaluate_CategoryMismatch(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryTech, 0.8)},
	)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "category_mismatch", contexts[0].Rule)
	assert.Equal(t, models.TicketStatusWaitingHuman, f.tickets.tickets["t-1"].Status)
	assert.Equal(t, []string{"category_mismatch"}, f.audit.events)
	assert.Empty(t, f.tickets.tickets["t-1"].AssigneeID, "mismatch must not reassign")
}

func TestEvaluate_NoRuleMatches(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryBilling, 0.9)},
	)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	assert.Empty(t, contexts)
	assert.Empty(t, f.notifier.sent)
}

func TestEvaluate_MissingSuggestionIsFine(t *testing.T) {
	f := newFixture(t, map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)}, nil)

	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestEvaluate_FailedActionStillHaltsChain(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, time.Hour)},
		map[string]*models.AgentSuggestion{"t-1": suggestion("t-1", models.CategoryTech, 0.2)},
	)
	f.tickets.updateErr = assert.AnError

	// Both the critical-confidence and category-mismatch predicates would
	// match; the failed critical action must not let the next rule run.
	contexts, err := f.engine.Evaluate(context.Background(), "t-1", "trace-1")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "critical_confidence", contexts[0].Rule)
	assert.Empty(t, f.audit.events)
}

func TestRunPeriodicSweep(t *testing.T) {
	f := newFixture(t,
		map[string]*models.Ticket{
			"t-old":    ticket("t-old", models.TicketStatusOpen, 48*time.Hour),
			"t-fine":   ticket("t-fine", models.TicketStatusOpen, time.Hour),
			"t-broken": ticket("t-broken", models.TicketStatusOpen, time.Hour),
		},
		map[string]*models.AgentSuggestion{"t-fine": suggestion("t-fine", models.CategoryBilling, 0.9)},
	)
	f.tickets.getErr["t-broken"] = assert.AnError

	result, err := f.engine.RunPeriodicSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Escalated)
	assert.Equal(t, models.PriorityUrgent, f.tickets.tickets["t-old"].Priority)
}

func TestRunPeriodicSweep_SkipsWhenAlreadyRunning(t *testing.T) {
	f := newFixture(t, map[string]*models.Ticket{"t-1": ticket("t-1", models.TicketStatusOpen, 48*time.Hour)}, nil)

	f.engine.sweepMu.Lock()
	defer f.engine.sweepMu.Unlock()

	result, err := f.engine.RunPeriodicSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, models.PriorityNormal, f.tickets.tickets["t-1"].Priority)
}
