// internal/store/audit.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
)

// AuditStore appends immutable trail events for triage decisions.
type AuditStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAuditStore(db *sql.DB, log logger.Logger) *AuditStore {
	return &AuditStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "audit"}),
	}
}

// Append writes one event. The payload is stored as jsonb.
func (s *AuditStore) Append(ctx context.Context, ticketID, eventType, actor string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return stderrors.NewDatabaseError("encode audit payload", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, ticket_id, event_type, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), ticketID, eventType, actor, data, time.Now().UTC())
	if err != nil {
		return stderrors.NewDatabaseError("append audit event", err)
	}
	return nil
}
