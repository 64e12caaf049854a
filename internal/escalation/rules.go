// Package escalation decides when a ticket needs a human. Rules are evaluated
// in priority order and at most one fires per evaluation.
package escalation

import (
	"context"
	"fmt"
	"time"

	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/store"
)

// Rule is one escalation policy. Matches must be side-effect free; all
// mutation happens in Apply.
type Rule interface {
	Name() string
	Priority() int
	Matches(ticket *models.Ticket, suggestion *models.AgentSuggestion, now time.Time) bool
	Apply(ctx context.Context, deps *Deps, ticket *models.Ticket, suggestion *models.AgentSuggestion, ec *models.EscalationContext) error
}

// Deps are the collaborators rule actions may touch.
type Deps struct {
	Tickets  TicketStore
	Users    UserDirectory
	Notifier Notifier
	Audit    Auditor
}

// slaBreachRule fires when a ticket has been waiting longer than the SLA
// allows.
type slaBreachRule struct {
	slaHours float64
}

func (r *slaBreachRule) Name() string  { return "sla_breach" }
func (r *slaBreachRule) Priority() int { return 3 }

func (r *slaBreachRule) Matches(ticket *models.Ticket, _ *models.AgentSuggestion, now time.Time) bool {
	return !ticket.IsTerminal() && ticket.AgeHours(now) > r.slaHours
}

func (r *slaBreachRule) Apply(ctx context.Context, deps *Deps, ticket *models.Ticket, _ *models.AgentSuggestion, ec *models.EscalationContext) error {
	urgent := models.PriorityUrgent
	update := store.TriageUpdate{Priority: &urgent}
	if ticket.Status == models.TicketStatusOpen {
		triaged := models.TicketStatusTriaged
		update.Status = &triaged
	}
	updated, err := deps.Tickets.UpdateTriage(ctx, ticket.ID, update)
	if err != nil {
		return err
	}

	ec.Reason = fmt.Sprintf("ticket exceeded the %.0fh SLA", r.slaHours)
	payload := map[string]interface{}{
		"ticketId": ticket.ID,
		"reason":   ec.Reason,
		"priority": string(updated.Priority),
	}
	deps.Notifier.NotifyUser(ticket.CreatedBy, "ticket.escalated", payload)
	if ticket.AssigneeID != "" {
		deps.Notifier.NotifyUser(ticket.AssigneeID, "ticket.escalated", payload)
	}
	return nil
}

// criticalConfidenceRule fires when the pipeline is so unsure that every admin
// should hear about it.
type criticalConfidenceRule struct {
	critical float64
}

func (r *criticalConfidenceRule) Name() string  { return "critical_confidence" }
func (r *criticalConfidenceRule) Priority() int { return 2 }

func (r *criticalConfidenceRule) Matches(_ *models.Ticket, suggestion *models.AgentSuggestion, _ time.Time) bool {
	return suggestion != nil && suggestion.Confidence < r.critical
}

func (r *criticalConfidenceRule) Apply(ctx context.Context, deps *Deps, ticket *models.Ticket, suggestion *models.AgentSuggestion, ec *models.EscalationContext) error {
	urgent := models.PriorityUrgent
	triaged := models.TicketStatusTriaged
	if _, err := deps.Tickets.UpdateTriage(ctx, ticket.ID, store.TriageUpdate{
		Priority: &urgent,
		Status:   &triaged,
	}); err != nil {
		return err
	}

	ec.Reason = fmt.Sprintf("suggestion confidence %.2f below critical threshold %.2f", suggestion.Confidence, r.critical)
	admins, err := deps.Users.ListAdmins(ctx)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		deps.Notifier.NotifyUser(admin.ID, "ticket.needs_attention", map[string]interface{}{
			"ticketId":   ticket.ID,
			"confidence": suggestion.Confidence,
			"reason":     ec.Reason,
		})
	}
	return nil
}

// lowConfidenceRule routes a shaky but not hopeless suggestion to one admin.
type lowConfidenceRule struct {
	low      float64
	critical float64
}

func (r *lowConfidenceRule) Name() string  { return "low_confidence" }
func (r *lowConfidenceRule) Priority() int { return 1 }

func (r *lowConfidenceRule) Matches(_ *models.Ticket, suggestion *models.AgentSuggestion, _ time.Time) bool {
	return suggestion != nil && suggestion.Confidence < r.low && suggestion.Confidence >= r.critical
}

func (r *lowConfidenceRule) Apply(ctx context.Context, deps *Deps, ticket *models.Ticket, suggestion *models.AgentSuggestion, ec *models.EscalationContext) error {
	high := models.PriorityHigh
	triaged := models.TicketStatusTriaged
	update := store.TriageUpdate{Priority: &high, Status: &triaged}

	admin, err := deps.Users.FirstAvailableAdmin(ctx)
	if err != nil {
		return err
	}
	if admin != nil {
		update.AssigneeID = &admin.ID
		ec.TargetID = admin.ID
	}

	if _, err := deps.Tickets.UpdateTriage(ctx, ticket.ID, update); err != nil {
		return err
	}

	ec.Reason = fmt.Sprintf("suggestion confidence %.2f below threshold %.2f", suggestion.Confidence, r.low)
	if admin != nil {
		deps.Notifier.NotifyUser(admin.ID, "ticket.assigned", map[string]interface{}{
			"ticketId":   ticket.ID,
			"confidence": suggestion.Confidence,
			"reason":     ec.Reason,
		})
	}
	return nil
}

// categoryMismatchRule parks confident predictions that contradict the
// reporter's own categorization for a human to arbitrate.
type categoryMismatchRule struct{}

func (r *categoryMismatchRule) Name() string  { return "category_mismatch" }
func (r *categoryMismatchRule) Priority() int { return 1 }

func (r *categoryMismatchRule) Matches(ticket *models.Ticket, suggestion *models.AgentSuggestion, _ time.Time) bool {
	return suggestion != nil &&
		suggestion.PredictedCategory != ticket.Category &&
		suggestion.Confidence > 0.7
}

func (r *categoryMismatchRule) Apply(ctx context.Context, deps *Deps, ticket *models.Ticket, suggestion *models.AgentSuggestion, ec *models.EscalationContext) error {
	waiting := models.TicketStatusWaitingHuman
	if _, err := deps.Tickets.UpdateTriage(ctx, ticket.ID, store.TriageUpdate{Status: &waiting}); err != nil {
		return err
	}

	ec.Reason = fmt.Sprintf("predicted category %q contradicts declared %q", suggestion.PredictedCategory, ticket.Category)
	return deps.Audit.Append(ctx, ticket.ID, "category_mismatch", "escalation-engine", map[string]interface{}{
		"declared":   string(ticket.Category),
		"predicted":  string(suggestion.PredictedCategory),
		"confidence": suggestion.Confidence,
		"traceId":    ec.TraceID,
	})
}

// BuiltinRules returns the standard rule set for the given thresholds.
func BuiltinRules(slaHours, lowConfidence, criticalConfidence float64) []Rule {
	return []Rule{
		&slaBreachRule{slaHours: slaHours},
		&criticalConfidenceRule{critical: criticalConfidence},
		&lowConfidenceRule{low: lowConfidence, critical: criticalConfidence},
		&categoryMismatchRule{},
	}
}
