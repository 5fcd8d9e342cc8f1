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

// ServiceAdapter implements the ServiceRepository interface
type ServiceAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewServiceAdapter creates a new service adapter
func NewServiceAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.ServiceRepository {
	return &ServiceAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "service_adapter").Logger(),
	}
}

// Upsert creates the service or updates its price in place
func (a *ServiceAdapter) Upsert(ctx context.Context, name string, price int64) error {
	if name == "" {
		return apperrors.NewValidationError("service name cannot be empty")
	}
	if price < 0 {
		return apperrors.NewValidationError("service price cannot be negative")
	}

	query, args, err := a.gq.Insert("services").
		Rows(goqu.Record{"name": name, "price": price}).
		OnConflict(goqu.DoUpdate("name", goqu.Record{"price": price})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if _, err := c.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to upsert service", err)
		}
		a.log.Info().Str("name", name).Int64("price", price).Msg("updated service")
		return nil
	})
}

// GetByName retrieves a service by exact name match
func (a *ServiceAdapter) GetByName(ctx context.Context, name string) (*entities.Service, error) {
	query, args, err := a.gq.Select("service_id", "name", "price").
		From("services").
		Where(goqu.Ex{"name": name}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	service := &entities.Service{}
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if err := c.GetContext(ctx, service, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError(fmt.Sprintf("service %q not found", name))
			}
			return apperrors.NewInternalError("failed to get service", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}

// List retrieves all services ordered by name
func (a *ServiceAdapter) List(ctx context.Context) ([]*entities.Service, error) {
	query, args, err := a.gq.Select("service_id", "name", "price").
		From("services").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	var services []*entities.Service
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if err := c.SelectContext(ctx, &services, query, args...); err != nil {
			return apperrors.NewInternalError("failed to list services", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}

// Delete removes a service by name. Association rows keep their foreign
// key, so a service that was ever billed cannot be removed.
func (a *ServiceAdapter) Delete(ctx context.Context, name string) error {
	query, args, err := a.gq.Delete("services").
		Where(goqu.Ex{"name": name}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("service %q is referenced by billed visits", name))
			}
			return apperrors.NewInternalError("failed to delete service", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}
		if affected == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("service %q not found", name))
		}
		a.log.Info().Str("name", name).Msg("deleted service")
		return nil
	})
}
