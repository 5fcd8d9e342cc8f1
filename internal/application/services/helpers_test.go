package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cabinethub/clinicdesk/internal/adapters/database"
	"github.com/cabinethub/clinicdesk/internal/application/services"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	"github.com/cabinethub/clinicdesk/pkg/config"
)

type fixture struct {
	pool     *sqlite.Pool
	patients repositories.PatientRepository
	visits   repositories.VisitRepository
	users    repositories.UserRepository
	services repositories.ServiceRepository
	audit    *services.AuditTrail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:     filepath.Join(t.TempDir(), "clinic.db"),
		MinConns: 1,
		MaxConns: 4,
		Timeout:  5 * time.Second,
	}
	pool, err := sqlite.NewPool(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	require.NoError(t, sqlite.NewSchema(pool, zerolog.Nop()).Init(context.Background()))

	audit := services.NewAuditTrail(database.NewAuditAdapter(pool, zerolog.Nop()), zerolog.Nop())
	t.Cleanup(audit.Close)

	return &fixture{
		pool:     pool,
		patients: database.NewPatientAdapter(pool, zerolog.Nop()),
		visits:   database.NewVisitAdapter(pool, zerolog.Nop()),
		users:    database.NewUserAdapter(pool, zerolog.Nop()),
		services: database.NewServiceAdapter(pool, zerolog.Nop()),
		audit:    audit,
	}
}

func (f *fixture) newQueue(t *testing.T, allowRepeatArrival bool) *services.QueueService {
	t.Helper()
	return services.NewQueueService(f.visits, f.patients, f.audit, allowRepeatArrival, zerolog.Nop())
}
