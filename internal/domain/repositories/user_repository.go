package repositories

import (
	"context"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
)

// UserRepository defines the interface for staff account operations
type UserRepository interface {
	// Create inserts a new user and fills in its id. Returns a CONFLICT
	// error when the username is taken.
	Create(ctx context.Context, user *entities.User) error

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// UpdatePassword replaces the stored credential for a username
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// ListByRole retrieves all users holding a role
	ListByRole(ctx context.Context, role entities.Role) ([]*entities.User, error)

	// Any reports whether any user exists. Used for first-run bootstrap.
	Any(ctx context.Context) (bool, error)
}

// AuditRepository defines the interface for the append-only audit log
type AuditRepository interface {
	// Append writes one audit entry
	Append(ctx context.Context, entry *entities.AuditEntry) error

	// ListRecent retrieves the newest entries, most recent first
	ListRecent(ctx context.Context, limit int) ([]*entities.AuditEntry, error)
}
