package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.UserRepository {
	return &UserAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "user_adapter").Logger(),
	}
}

// Create creates a new user
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	if !user.Role.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid role %q", user.Role))
	}

	query, args, err := a.gq.Insert("users").Rows(goqu.Record{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("username %q already exists", user.Username))
			}
			return apperrors.NewInternalError("failed to create user", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return apperrors.NewInternalError("failed to read user id", err)
		}
		user.ID = id
		a.log.Info().Int64("user_id", id).Str("username", user.Username).Str("role", string(user.Role)).Msg("added user")
		return nil
	})
}

// GetByUsername retrieves a user by username
func (a *UserAdapter) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	query, args, err := a.gq.Select("user_id", "username", "password_hash", "role").
		From("users").
		Where(goqu.Ex{"username": username}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user := &entities.User{}
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if err := c.GetContext(ctx, user, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError(fmt.Sprintf("user %q not found", username))
			}
			return apperrors.NewInternalError("failed to get user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdatePassword replaces the stored credential for a username
func (a *UserAdapter) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	query, args, err := a.gq.Update("users").
		Set(goqu.Record{"password_hash": passwordHash}).
		Where(goqu.Ex{"username": username}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to update password", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}
		if affected == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("user %q not found", username))
		}
		a.log.Info().Str("username", username).Msg("updated password")
		return nil
	})
}

// ListByRole retrieves all users holding a role
func (a *UserAdapter) ListByRole(ctx context.Context, role entities.Role) ([]*entities.User, error) {
	query, args, err := a.gq.Select("user_id", "username", "password_hash", "role").
		From("users").
		Where(goqu.Ex{"role": string(role)}).
		Order(goqu.I("username").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	var users []*entities.User
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if err := c.SelectContext(ctx, &users, query, args...); err != nil {
			return apperrors.NewInternalError("failed to list users", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Any reports whether any user exists
func (a *UserAdapter) Any(ctx context.Context) (bool, error) {
	var exists bool
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var one int
		err := c.GetContext(ctx, &one, "SELECT 1 FROM users LIMIT 1")
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return apperrors.NewInternalError("failed to check for users", err)
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}
