package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// VisitAdapter implements the VisitRepository interface. Visit state lives
// entirely in the row's lifecycle timestamps and the cancelled flag; every
// transition is a predicate over those columns, keyed by id.
type VisitAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewVisitAdapter creates a new visit adapter
func NewVisitAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.VisitRepository {
	return &VisitAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "visit_adapter").Logger(),
	}
}

type visitRow struct {
	ID           int64          `db:"visit_id"`
	PatientID    int64          `db:"patient_id"`
	PatientName  string         `db:"name"`
	Date         string         `db:"date"`
	ArrivedAt    string         `db:"arrived_at"`
	CalledAt     sql.NullString `db:"called_at"`
	CheckedOutAt sql.NullString `db:"checkout_at"`
	TotalPaid    sql.NullInt64  `db:"total_paid"`
	Cancelled    bool           `db:"cancelled"`
}

func (r visitRow) toEntity() (*entities.Visit, error) {
	date, err := time.ParseInLocation(entities.DateLayout, r.Date, time.Local)
	if err != nil {
		return nil, timeParseError(err)
	}
	arrived, err := parseTime(r.ArrivedAt)
	if err != nil {
		return nil, timeParseError(err)
	}
	called, err := parseNullTime(r.CalledAt)
	if err != nil {
		return nil, timeParseError(err)
	}
	checkedOut, err := parseNullTime(r.CheckedOutAt)
	if err != nil {
		return nil, timeParseError(err)
	}
	return &entities.Visit{
		ID:           r.ID,
		PatientID:    r.PatientID,
		PatientName:  r.PatientName,
		Date:         date,
		ArrivedAt:    arrived,
		CalledAt:     called,
		CheckedOutAt: checkedOut,
		TotalPaid:    nullInt(r.TotalPaid),
		Cancelled:    r.Cancelled,
	}, nil
}

const visitColumns = `v.visit_id, v.patient_id, p.name, v.date, v.arrived_at,
	v.called_at, v.checkout_at, v.total_paid, v.cancelled`

// Create inserts a new waiting visit and fills in its id
func (a *VisitAdapter) Create(ctx context.Context, visit *entities.Visit) error {
	if visit.Date.IsZero() {
		visit.Date = visit.ArrivedAt
	}

	query, args, err := a.gq.Insert("visits").Rows(goqu.Record{
		"patient_id": visit.PatientID,
		"date":       visit.Date.Format(entities.DateLayout),
		"arrived_at": visit.ArrivedAt.Format(entities.TimeLayout),
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("patient %d does not exist", visit.PatientID))
			}
			return apperrors.NewInternalError("failed to create visit", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return apperrors.NewInternalError("failed to read visit id", err)
		}
		visit.ID = id
		a.log.Info().Int64("visit_id", id).Int64("patient_id", visit.PatientID).Msg("registered visit")
		return nil
	})
}

// GetByID retrieves a visit by id, with the patient name joined in
func (a *VisitAdapter) GetByID(ctx context.Context, id int64) (*entities.Visit, error) {
	query := fmt.Sprintf(`SELECT %s
		FROM visits v
		JOIN patients p ON v.patient_id = p.patient_id
		WHERE v.visit_id = ?`, visitColumns)

	var visit *entities.Visit
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var row visitRow
		if err := c.GetContext(ctx, &row, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError(fmt.Sprintf("visit %d not found", id))
			}
			return apperrors.NewInternalError("failed to get visit", err)
		}
		var err error
		visit, err = row.toEntity()
		return err
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

// ListByDate retrieves all visits for a calendar day ordered by arrival
func (a *VisitAdapter) ListByDate(ctx context.Context, date time.Time) ([]*entities.Visit, error) {
	query := fmt.Sprintf(`SELECT %s
		FROM visits v
		JOIN patients p ON v.patient_id = p.patient_id
		WHERE v.date = ?
		ORDER BY v.arrived_at ASC, v.visit_id ASC`, visitColumns)

	var visits []*entities.Visit
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var rows []visitRow
		if err := c.SelectContext(ctx, &rows, query, date.Format(entities.DateLayout)); err != nil {
			return apperrors.NewInternalError("failed to list visits", err)
		}
		for _, row := range rows {
			visit, err := row.toEntity()
			if err != nil {
				return err
			}
			visits = append(visits, visit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return visits, nil
}

// CallNext marks the patient's most recent uncalled visit of the day as
// called. If multiple waiting visits exist the newest arrival is called.
// Returns false when there is nothing to call.
func (a *VisitAdapter) CallNext(ctx context.Context, patientID int64, calledAt time.Time) (bool, error) {
	var called bool
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var visitID int64
		err := c.GetContext(ctx, &visitID, `SELECT visit_id
			FROM visits
			WHERE patient_id = ?
			AND called_at IS NULL
			AND date = ?
			ORDER BY arrived_at DESC, visit_id DESC
			LIMIT 1`, patientID, calledAt.Format(entities.DateLayout))
		if errors.Is(err, sql.ErrNoRows) {
			a.log.Warn().Int64("patient_id", patientID).Msg("no waiting visit to call")
			return nil
		}
		if err != nil {
			return apperrors.NewInternalError("failed to find visit to call", err)
		}

		result, err := c.ExecContext(ctx, `UPDATE visits SET called_at = ? WHERE visit_id = ?`,
			calledAt.Format(entities.TimeLayout), visitID)
		if err != nil {
			return apperrors.NewInternalError("failed to update call time", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}
		if affected > 0 {
			called = true
			a.log.Info().Int64("visit_id", visitID).Int64("patient_id", patientID).Msg("patient called")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return called, nil
}

// Checkout completes a visit. The visit update, the service association
// rows and the payment transaction commit together or not at all.
func (a *VisitAdapter) Checkout(ctx context.Context, visitID int64, totalPaid int64, serviceIDs []int64) error {
	now := nowFunc()

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		tx, err := c.BeginTxx(ctx, nil)
		if err != nil {
			return apperrors.NewInternalError("failed to begin transaction", err)
		}
		defer tx.Rollback()

		var patientName string
		err = tx.GetContext(ctx, &patientName, `SELECT p.name
			FROM visits v
			JOIN patients p ON v.patient_id = p.patient_id
			WHERE v.visit_id = ?`, visitID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError(fmt.Sprintf("visit %d not found", visitID))
		}
		if err != nil {
			return apperrors.NewInternalError("failed to load visit", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE visits SET checkout_at = ?, total_paid = ? WHERE visit_id = ?`,
			now.Format(entities.TimeLayout), totalPaid, visitID)
		if err != nil {
			return apperrors.NewInternalError("failed to update visit checkout", err)
		}

		for _, serviceID := range serviceIDs {
			_, err = tx.ExecContext(ctx, `INSERT INTO visit_services (visit_id, service_id) VALUES (?, ?)`,
				visitID, serviceID)
			if err != nil {
				if isConstraintViolation(err) {
					return apperrors.NewConflictError(fmt.Sprintf("service %d invalid or already billed on visit %d", serviceID, visitID))
				}
				return apperrors.NewInternalError("failed to record visit service", err)
			}
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO transactions (visit_id, patient_name, amount, timestamp) VALUES (?, ?, ?, ?)`,
			visitID, patientName, totalPaid, now.Format(entities.TimeLayout))
		if err != nil {
			return apperrors.NewInternalError("failed to record payment transaction", err)
		}

		if err := tx.Commit(); err != nil {
			return apperrors.NewInternalError("failed to commit checkout", err)
		}
		a.log.Info().Int64("visit_id", visitID).Int64("total_paid", totalPaid).Msg("visit checked out")
		return nil
	})
}

// Cancel terminates a waiting visit. Both lifecycle timestamps are set to
// the cancellation time, total paid is zeroed, and the cancelled flag makes
// the row distinguishable from a zero-cost completed visit.
func (a *VisitAdapter) Cancel(ctx context.Context, visitID int64, at time.Time) error {
	ts := at.Format(entities.TimeLayout)

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, `UPDATE visits
			SET checkout_at = ?, called_at = ?, total_paid = 0, cancelled = 1
			WHERE visit_id = ? AND called_at IS NULL`, ts, ts, visitID)
		if err != nil {
			return apperrors.NewInternalError("failed to cancel visit", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}
		if affected == 0 {
			var one int
			err := c.GetContext(ctx, &one, `SELECT 1 FROM visits WHERE visit_id = ?`, visitID)
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError(fmt.Sprintf("visit %d not found", visitID))
			}
			if err != nil {
				return apperrors.NewInternalError("failed to load visit", err)
			}
			return apperrors.NewConflictError(fmt.Sprintf("visit %d is not waiting", visitID))
		}
		a.log.Info().Int64("visit_id", visitID).Msg("visit cancelled")
		return nil
	})
}

// ServicesForVisit retrieves the services associated with a visit
func (a *VisitAdapter) ServicesForVisit(ctx context.Context, visitID int64) ([]*entities.Service, error) {
	var services []*entities.Service
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		err := c.SelectContext(ctx, &services, `SELECT s.service_id, s.name, s.price
			FROM services s
			JOIN visit_services vs ON s.service_id = vs.service_id
			WHERE vs.visit_id = ?
			ORDER BY s.name ASC`, visitID)
		if err != nil {
			return apperrors.NewInternalError("failed to list visit services", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}

// TransactionsForVisit retrieves the payment records of a visit
func (a *VisitAdapter) TransactionsForVisit(ctx context.Context, visitID int64) ([]*entities.Transaction, error) {
	type txRow struct {
		ID          int64  `db:"transaction_id"`
		VisitID     int64  `db:"visit_id"`
		PatientName string `db:"patient_name"`
		Amount      int64  `db:"amount"`
		Timestamp   string `db:"timestamp"`
	}

	var transactions []*entities.Transaction
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var rows []txRow
		err := c.SelectContext(ctx, &rows, `SELECT transaction_id, visit_id, patient_name, amount, timestamp
			FROM transactions
			WHERE visit_id = ?
			ORDER BY transaction_id ASC`, visitID)
		if err != nil {
			return apperrors.NewInternalError("failed to list transactions", err)
		}
		for _, row := range rows {
			ts, err := parseTime(row.Timestamp)
			if err != nil {
				return timeParseError(err)
			}
			transactions = append(transactions, &entities.Transaction{
				ID:          row.ID,
				VisitID:     row.VisitID,
				PatientName: row.PatientName,
				Amount:      row.Amount,
				Timestamp:   ts,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
