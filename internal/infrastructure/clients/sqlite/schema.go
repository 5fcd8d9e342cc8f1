package sqlite

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// createStatements is the idempotent bulk of the schema: tables and indexes
// guarded by IF NOT EXISTS, executed in one transaction on startup.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('Doctor', 'Receptionist', 'Assistant', 'Admin'))
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		patient_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		phone_number TEXT,
		first_seen_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS visits (
		visit_id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		arrived_at TEXT NOT NULL,
		called_at TEXT,
		checkout_at TEXT,
		total_paid INTEGER,
		cancelled INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (patient_id) REFERENCES patients(patient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		service_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		price INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS visit_services (
		visit_id INTEGER NOT NULL,
		service_id INTEGER NOT NULL,
		FOREIGN KEY (visit_id) REFERENCES visits(visit_id),
		FOREIGN KEY (service_id) REFERENCES services(service_id),
		PRIMARY KEY (visit_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_id INTEGER NOT NULL,
		patient_name TEXT NOT NULL,
		amount INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (visit_id) REFERENCES visits(visit_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		log_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		action TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		details TEXT,
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_date ON visits(date)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_called_at ON visits(called_at)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_checkout_at ON visits(checkout_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id)`,
}

// columnMigrations are additive column upgrades for database files created
// by older versions. A "duplicate column name" failure means the column is
// already there and is swallowed; anything else aborts startup.
var columnMigrations = []struct {
	table string
	ddl   string
}{
	{"patients", "ALTER TABLE patients ADD COLUMN phone_number TEXT"},
	{"visits", "ALTER TABLE visits ADD COLUMN cancelled INTEGER NOT NULL DEFAULT 0"},
}

// Schema brings a possibly pre-existing, possibly empty database file to
// the current expected schema on startup.
type Schema struct {
	pool *Pool
	log  zerolog.Logger
}

// NewSchema creates a schema manager over the pool
func NewSchema(pool *Pool, logger zerolog.Logger) *Schema {
	return &Schema{
		pool: pool,
		log:  logger.With().Str("component", "schema").Logger(),
	}
}

// Init creates or upgrades the schema. It is idempotent; running it twice
// against the same file produces no errors and an identical schema. Any
// unexpected failure is returned as a CONNECTION error and must abort
// startup.
func (s *Schema) Init(ctx context.Context) error {
	err := s.pool.WithConn(ctx, func(c *Conn) error {
		tx, err := c.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range createStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		for _, m := range columnMigrations {
			if _, err := c.ExecContext(ctx, m.ddl); err != nil {
				if isDuplicateColumn(err) {
					s.log.Debug().Str("table", m.table).Msg("column already exists")
					continue
				}
				return err
			}
			s.log.Info().Str("table", m.table).Str("ddl", m.ddl).Msg("applied column migration")
		}
		return nil
	})
	if err != nil {
		return apperrors.NewConnectionError("failed to initialize database schema", err)
	}

	s.log.Info().Msg("database schema initialized")
	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
