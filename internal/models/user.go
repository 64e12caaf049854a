// internal/models/user.go
package models

import "time"

// UserRole distinguishes admins (escalation targets) from regular users.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAgent UserRole = "agent"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"createdAt"`
}
