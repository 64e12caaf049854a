// internal/store/tickets.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

const ticketColumns = `id, title, description, category, status, priority, created_by, assignee_id, created_at, updated_at`

type TicketStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTicketStore(db *sql.DB, log logger.Logger) *TicketStore {
	return &TicketStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "tickets"}),
	}
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1`, id)
	return scanTicket(row, id)
}

// ListOpenForSweep returns non-urgent tickets still awaiting resolution for
// the periodic escalation pass, oldest first, capped to limit.
func (s *TicketStore) ListOpenForSweep(ctx context.Context, limit int) ([]models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status IN ($1, $2, $3) AND priority <> $4
		ORDER BY created_at ASC
		LIMIT $5`,
		models.TicketStatusOpen, models.TicketStatusTriaged, models.TicketStatusWaitingHuman,
		models.PriorityUrgent, limit)
	if err != nil {
		return nil, stderrors.NewDatabaseError("list tickets for sweep", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		var assignee sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.Status,
			&t.Priority, &t.CreatedBy, &assignee, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, stderrors.NewDatabaseError("scan ticket", err)
		}
		t.AssigneeID = assignee.String
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseError("iterate tickets", err)
	}
	return tickets, nil
}

// TriageUpdate carries the fields an escalation action may change. Nil fields
// are left untouched.
type TriageUpdate struct {
	Status     *models.TicketStatus
	Priority   *models.TicketPriority
	AssigneeID *string
}

// UpdateTriage re-reads the ticket before writing so a sweep never overwrites
// a state change that happened after the ticket was listed. Terminal tickets
// are left alone.
func (s *TicketStore) UpdateTriage(ctx context.Context, id string, update TriageUpdate) (*models.Ticket, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return current, nil
	}

	if update.Status != nil {
		current.Status = *update.Status
	}
	if update.Priority != nil {
		current.Priority = *update.Priority
	}
	if update.AssigneeID != nil {
		current.AssigneeID = *update.AssigneeID
	}
	current.UpdatedAt = time.Now().UTC()

	assignee := sql.NullString{String: current.AssigneeID, Valid: current.AssigneeID != ""}
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = $2, priority = $3, assignee_id = $4, updated_at = $5
		WHERE id = $1`,
		id, current.Status, current.Priority, assignee, current.UpdatedAt)
	if err != nil {
		return nil, stderrors.NewDatabaseError("update ticket", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	return current, nil
}

// Resolve marks a ticket resolved. Used by auto-close and accept flows.
func (s *TicketStore) Resolve(ctx context.Context, id string) (*models.Ticket, error) {
	status := models.TicketStatusResolved
	return s.UpdateTriage(ctx, id, TriageUpdate{Status: &status})
}

// AppendReply stores a reply on the ticket thread and returns it.
func (s *TicketStore) AppendReply(ctx context.Context, ticketID, authorID, body, agentTag string) (*models.TicketReply, error) {
	reply := &models.TicketReply{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Body:      body,
		AgentTag:  agentTag,
		CreatedAt: time.Now().UTC(),
	}

	tag := sql.NullString{String: agentTag, Valid: agentTag != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_replies (id, ticket_id, author_id, body, agent_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		reply.ID, reply.TicketID, reply.AuthorID, reply.Body, tag, reply.CreatedAt)
	if err != nil {
		return nil, stderrors.NewDatabaseError("append reply", err)
	}
	return reply, nil
}

func scanTicket(row *sql.Row, id string) (*models.Ticket, error) {
	var t models.Ticket
	var assignee sql.NullString
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.Status,
		&t.Priority, &t.CreatedBy, &assignee, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseError("get ticket", err)
	}
	t.AssigneeID = assignee.String
	return &t, nil
}
