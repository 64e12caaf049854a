// internal/store/users.go
package store

import (
	"context"
	"database/sql"
	"errors"

	stderrors "helpdesk-workers/internal/common/errors"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/models"
)

type UserStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewUserStore(db *sql.DB, log logger.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "users"}),
	}
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, available, created_at
		FROM users
		WHERE id = $1`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Available, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewDatabaseError("get user", sql.ErrNoRows)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseError("get user", err)
	}
	return &u, nil
}

// FirstAvailableAdmin returns the longest-tenured available admin, or nil when
// nobody can take an escalation right now.
func (s *UserStore) FirstAvailableAdmin(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, available, created_at
		FROM users
		WHERE role = $1 AND available = TRUE
		ORDER BY created_at ASC
		LIMIT 1`, models.RoleAdmin).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Available, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewDatabaseError("find available admin", err)
	}
	return &u, nil
}

// ListAdmins returns all admins regardless of availability, oldest first.
func (s *UserStore) ListAdmins(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, role, available, created_at
		FROM users
		WHERE role = $1
		ORDER BY created_at ASC`, models.RoleAdmin)
	if err != nil {
		return nil, stderrors.NewDatabaseError("list admins", err)
	}
	defer rows.Close()

	var admins []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Available, &u.CreatedAt); err != nil {
			return nil, stderrors.NewDatabaseError("scan user", err)
		}
		admins = append(admins, u)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewDatabaseError("iterate users", err)
	}
	return admins, nil
}
