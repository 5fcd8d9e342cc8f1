package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// AuditAdapter implements the AuditRepository interface
type AuditAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewAuditAdapter creates a new audit adapter
func NewAuditAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.AuditRepository {
	return &AuditAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "audit_adapter").Logger(),
	}
}

// Append writes one audit entry
func (a *AuditAdapter) Append(ctx context.Context, entry *entities.AuditEntry) error {
	record := goqu.Record{
		"action":    entry.Action,
		"timestamp": entry.Timestamp.Format(entities.TimeLayout),
		"details":   entry.Details,
	}
	if entry.UserID != nil {
		record["user_id"] = *entry.UserID
	}

	query, args, err := a.gq.Insert("audit_log").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		if _, err := c.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to append audit entry", err)
		}
		return nil
	})
}

type auditRow struct {
	ID        int64          `db:"log_id"`
	UserID    sql.NullInt64  `db:"user_id"`
	Action    string         `db:"action"`
	Timestamp string         `db:"timestamp"`
	Details   sql.NullString `db:"details"`
}

// ListRecent retrieves the newest entries, most recent first
func (a *AuditAdapter) ListRecent(ctx context.Context, limit int) ([]*entities.AuditEntry, error) {
	ds := a.gq.Select("log_id", "user_id", "action", "timestamp", "details").
		From("audit_log").
		Order(goqu.I("timestamp").Desc(), goqu.I("log_id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	var entries []*entities.AuditEntry
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var rows []auditRow
		if err := c.SelectContext(ctx, &rows, query, args...); err != nil {
			return apperrors.NewInternalError("failed to list audit entries", err)
		}
		for _, row := range rows {
			ts, err := parseTime(row.Timestamp)
			if err != nil {
				return timeParseError(err)
			}
			entries = append(entries, &entities.AuditEntry{
				ID:        row.ID,
				UserID:    nullInt(row.UserID),
				Action:    row.Action,
				Timestamp: ts,
				Details:   row.Details.String,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
