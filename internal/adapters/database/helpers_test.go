package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	"github.com/cabinethub/clinicdesk/pkg/config"
)

// newTestDB opens a pool against a fresh temporary database file with the
// schema applied.
func newTestDB(t *testing.T) *sqlite.Pool {
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
	return pool
}
