package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.PatientRepository {
	return &PatientAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "patient_adapter").Logger(),
	}
}

type patientRow struct {
	ID          int64          `db:"patient_id"`
	Name        string         `db:"name"`
	PhoneNumber sql.NullString `db:"phone_number"`
	FirstSeen   string         `db:"first_seen_date"`
}

func (r patientRow) toEntity() (*entities.Patient, error) {
	firstSeen, err := parseTime(r.FirstSeen)
	if err != nil {
		return nil, timeParseError(err)
	}
	return &entities.Patient{
		ID:          r.ID,
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber.String,
		FirstSeen:   firstSeen,
	}, nil
}

// Create creates a new patient
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if patient.Name == "" {
		return apperrors.NewValidationError("patient name cannot be empty")
	}

	record := goqu.Record{
		"name":            patient.Name,
		"first_seen_date": patient.FirstSeen.Format(entities.TimeLayout),
	}
	if patient.PhoneNumber != "" {
		record["phone_number"] = patient.PhoneNumber
	}

	query, args, err := a.gq.Insert("patients").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	return a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			if isConstraintViolation(err) {
				return apperrors.NewConflictError(fmt.Sprintf("patient %q already registered", patient.Name))
			}
			return apperrors.NewInternalError("failed to create patient", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return apperrors.NewInternalError("failed to read patient id", err)
		}
		patient.ID = id
		a.log.Info().Int64("patient_id", id).Str("name", patient.Name).Msg("registered patient")
		return nil
	})
}

// GetOrCreate returns the patient registered under name, creating it on
// first registration.
func (a *PatientAdapter) GetOrCreate(ctx context.Context, name, phoneNumber string) (*entities.Patient, error) {
	patient, err := a.GetByName(ctx, name)
	if err == nil {
		return patient, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	patient = &entities.Patient{
		Name:        name,
		PhoneNumber: phoneNumber,
		FirstSeen:   nowFunc(),
	}
	if err := a.Create(ctx, patient); err != nil {
		// Lost a race with a concurrent registration; the row exists now.
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return a.GetByName(ctx, name)
		}
		return nil, err
	}
	return patient, nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id int64) (*entities.Patient, error) {
	return a.getOne(ctx, goqu.Ex{"patient_id": id}, fmt.Sprintf("patient %d not found", id))
}

// GetByName retrieves a patient by exact name match
func (a *PatientAdapter) GetByName(ctx context.Context, name string) (*entities.Patient, error) {
	return a.getOne(ctx, goqu.Ex{"name": name}, fmt.Sprintf("patient %q not found", name))
}

func (a *PatientAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Patient, error) {
	query, args, err := a.gq.Select("patient_id", "name", "phone_number", "first_seen_date").
		From("patients").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var patient *entities.Patient
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var row patientRow
		if err := c.GetContext(ctx, &row, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError(notFoundMsg)
			}
			return apperrors.NewInternalError("failed to get patient", err)
		}
		patient, err = row.toEntity()
		return err
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// List retrieves all patients ordered by name
func (a *PatientAdapter) List(ctx context.Context) ([]*entities.Patient, error) {
	query, args, err := a.gq.Select("patient_id", "name", "phone_number", "first_seen_date").
		From("patients").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	var patients []*entities.Patient
	err = a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		var rows []patientRow
		if err := c.SelectContext(ctx, &rows, query, args...); err != nil {
			return apperrors.NewInternalError("failed to list patients", err)
		}
		for _, row := range rows {
			patient, err := row.toEntity()
			if err != nil {
				return err
			}
			patients = append(patients, patient)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patients, nil
}
