// internal/pipeline/triage_test.go
package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/retrieval"
)

type fakeTickets struct {
	tickets  map[string]*models.Ticket
	replies  int
	resolved []string
}

func (f *fakeTickets) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTickets) AppendReply(ctx context.Context, ticketID, authorID, body, agentTag string) (*models.TicketReply, error) {
	f.replies++
	return &models.TicketReply{TicketID: ticketID, Body: body, AgentTag: agentTag}, nil
}

func (f *fakeTickets) Resolve(ctx context.Context, id string) (*models.Ticket, error) {
	f.resolved = append(f.resolved, id)
	t := *f.tickets[id]
	t.Status = models.TicketStatusResolved
	return &t, nil
}

type fakeClassifier struct {
	result models.ClassificationResult
}

func (f *fakeClassifier) Classify(text string) models.ClassificationResult { return f.result }

type fakeDrafter struct {
	result models.DraftResult
}

func (f *fakeDrafter) Draft(text string, articles []models.Article) models.DraftResult {
	return f.result
}

type fakeRetriever struct {
	result *models.RAGResult
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, limit int, opts retrieval.Options) (*models.RAGResult, error) {
	return f.result, nil
}

type fakeSuggestions struct {
	byTicket map[string]*models.AgentSuggestion
}

func (f *fakeSuggestions) Create(ctx context.Context, sg *models.AgentSuggestion) (*models.AgentSuggestion, error) {
	if _, exists := f.byTicket[sg.TicketID]; exists {
		return nil, stderrors.NewDuplicateSuggestionError(sg.TicketID)
	}
	f.byTicket[sg.TicketID] = sg
	return sg, nil
}

func (f *fakeSuggestions) GetByTicketID(ctx context.Context, ticketID string) (*models.AgentSuggestion, error) {
	sg, ok := f.byTicket[ticketID]
	if !ok {
		return nil, stderrors.NewSuggestionNotFoundError(ticketID)
	}
	return sg, nil
}

type fakeEscalator struct {
	calls    int
	contexts []models.EscalationContext
}

func (f *fakeEscalator) Evaluate(ctx context.Context, ticketID, traceID string) ([]models.EscalationContext, error) {
	f.calls++
	return f.contexts, nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) NotifyUser(userID, event string, payload map[string]interface{}) {
	f.sent = append(f.sent, event)
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Append(ctx context.Context, ticketID, eventType, actor string, payload map[string]interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

type triageFixture struct {
	triage      *Triage
	tickets     *fakeTickets
	suggestions *fakeSuggestions
	escalator   *fakeEscalator
	notifier    *fakeNotifier
	audit       *fakeAudit
}

func newTriageFixture(t *testing.T, confidence float64) *triageFixture {
	t.Helper()

	f := &triageFixture{
		tickets: &fakeTickets{tickets: map[string]*models.Ticket{
			"t-1": {
				ID: "t-1", Title: "Charged twice", Description: "please refund",
				Category: models.CategoryBilling, Status: models.TicketStatusOpen,
				Priority: models.PriorityNormal, CreatedBy: "user-1",
			},
		}},
		suggestions: &fakeSuggestions{byTicket: map[string]*models.AgentSuggestion{}},
		escalator:   &fakeEscalator{},
		notifier:    &fakeNotifier{},
		audit:       &fakeAudit{},
	}

	f.triage = NewTriage(
		Config{AutoCloseConfidence: 0.7, RetrievalLimit: 5, MaxContextTokens: 8000},
		f.tickets,
		&fakeClassifier{result: models.ClassificationResult{Category: models.CategoryBilling, Confidence: confidence}},
		&fakeDrafter{result: models.DraftResult{
			Reply:         "Here is how to resolve your billing problem.",
			CitedArticles: []string{"kb-1"},
			Confidence:    confidence,
		}},
		&fakeRetriever{result: &models.RAGResult{
			Articles:     []models.ScoredArticle{},
			SearchMethod: "local_vector",
		}},
		f.suggestions,
		f.escalator,
		f.notifier,
		f.audit,
		nil,
		logger.Nop(),
	)
	return f
}

func TestRun_AutoClose(t *testing.T) {
	f := newTriageFixture(t, 0.9)

	result, err := f.triage.Run(context.Background(), "t-1")
	require.NoError(t, err)

	assert.True(t, result.AutoClosed)
	require.NotNil(t, result.Suggestion)
	assert.True(t, result.Suggestion.AutoClosed)
	assert.Equal(t, 1, f.tickets.replies)
	assert.Equal(t, []string{"t-1"}, f.tickets.resolved)
	assert.Equal(t, []string{"auto_close"}, f.audit.events)
	assert.Equal(t, []string{"ticket.auto_closed"}, f.notifier.sent)
	assert.Zero(t, f.escalator.calls, "auto-closed tickets are not escalated")
}

func TestRun_LowConfidenceEscalates(t *testing.T) {
	f := newTriageFixture(t, 0.4)
	f.escalator.contexts = []models.EscalationContext{{Rule: "low_confidence"}}

	result, err := f.triage.Run(context.Background(), "t-1")
	require.NoError(t, err)

	assert.False(t, result.AutoClosed)
	assert.Equal(t, 1, f.escalator.calls)
	require.Len(t, result.Escalated, 1)
	assert.Equal(t, "low_confidence", result.Escalated[0].Rule)
	assert.Zero(t, f.tickets.replies)
	assert.Empty(t, f.tickets.resolved)
}

func TestRun_DuplicateSuggestionTreatedAsSuccess(t *testing.T) {
	f := newTriageFixture(t, 0.9)
	existing := &models.AgentSuggestion{TicketID: "t-1", Confidence: 0.8}
	f.suggestions.byTicket["t-1"] = existing

	result, err := f.triage.Run(context.Background(), "t-1")
	require.NoError(t, err)

	assert.Same(t, existing, result.Suggestion)
	assert.Zero(t, f.tickets.replies, "losing the race must not repeat side effects")
	assert.Zero(t, f.escalator.calls)
	assert.Empty(t, f.notifier.sent)
}

func TestRun_TerminalTicketSkipped(t *testing.T) {
	f := newTriageFixture(t, 0.9)
	f.tickets.tickets["t-1"].Status = models.TicketStatusClosed

	result, err := f.triage.Run(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Nil(t, result.Suggestion)
	assert.Empty(t, f.suggestions.byTicket)
}

func TestRun_MissingTicket(t *testing.T) {
	f := newTriageFixture(t, 0.9)
	_, err := f.triage.Run(context.Background(), "t-404")
	assert.ErrorIs(t, err, stderrors.ErrTicketNotFound)
}

func TestRun_ExactThresholdAutoCloses(t *testing.T) {
	f := newTriageFixture(t, 0.7)

	result, err := f.triage.Run(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, result.AutoClosed)
}
