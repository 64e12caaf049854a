// internal/models/ticket.go
package models

import "time"

// TicketStatus enumerates the lifecycle states read and written by triage.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusTriaged      TicketStatus = "triaged"
	TicketStatusWaitingHuman TicketStatus = "waiting_human"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
)

// TicketPriority levels, ordered.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// TicketCategory is the declared (and predicted) category enum.
type TicketCategory string

const (
	CategoryBilling  TicketCategory = "billing"
	CategoryTech     TicketCategory = "tech"
	CategoryShipping TicketCategory = "shipping"
	CategoryOther    TicketCategory = "other"
)

// Ticket carries the fields the triage pipeline reads; status, priority and
// assignee are the only fields it mutates, and only through escalation or
// suggestion actions.
type Ticket struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    TicketCategory `json:"category"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	CreatedBy   string         `json:"createdBy"`
	AssigneeID  string         `json:"assigneeId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// IsTerminal reports whether the ticket is resolved or closed.
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusClosed
}

// AgeHours returns the ticket age at the given instant.
func (t *Ticket) AgeHours(now time.Time) float64 {
	return now.Sub(t.CreatedAt).Hours()
}

// TicketReply is an agent or user reply appended to a ticket thread.
type TicketReply struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	AgentTag  string    `json:"agentTag,omitempty"` // set when drafted by the triage agent
	CreatedAt time.Time `json:"createdAt"`
}
