package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinethub/clinicdesk/internal/adapters/database"
	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

func TestUserAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("create and retrieve", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())

		user := &entities.User{Username: "drkhaled", PasswordHash: "salt$artifact$digest", Role: entities.RoleDoctor}
		require.NoError(t, users.Create(ctx, user))
		assert.NotZero(t, user.ID)

		loaded, err := users.GetByUsername(ctx, "drkhaled")
		require.NoError(t, err)
		assert.Equal(t, user.ID, loaded.ID)
		assert.Equal(t, entities.RoleDoctor, loaded.Role)
		assert.Equal(t, "salt$artifact$digest", loaded.PasswordHash)
	})

	t.Run("invalid role is rejected", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())
		err := users.Create(ctx, &entities.User{Username: "x", PasswordHash: "h", Role: "Janitor"})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())
		require.NoError(t, users.Create(ctx, &entities.User{Username: "sonia", PasswordHash: "h", Role: entities.RoleReceptionist}))

		err := users.Create(ctx, &entities.User{Username: "sonia", PasswordHash: "h2", Role: entities.RoleAssistant})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("update password", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())
		require.NoError(t, users.Create(ctx, &entities.User{Username: "sonia", PasswordHash: "old", Role: entities.RoleReceptionist}))

		require.NoError(t, users.UpdatePassword(ctx, "sonia", "new"))
		loaded, err := users.GetByUsername(ctx, "sonia")
		require.NoError(t, err)
		assert.Equal(t, "new", loaded.PasswordHash)

		err = users.UpdatePassword(ctx, "nobody", "h")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("list by role", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())
		require.NoError(t, users.Create(ctx, &entities.User{Username: "drkhaled", PasswordHash: "h", Role: entities.RoleDoctor}))
		require.NoError(t, users.Create(ctx, &entities.User{Username: "dramel", PasswordHash: "h", Role: entities.RoleDoctor}))
		require.NoError(t, users.Create(ctx, &entities.User{Username: "sonia", PasswordHash: "h", Role: entities.RoleReceptionist}))

		doctors, err := users.ListByRole(ctx, entities.RoleDoctor)
		require.NoError(t, err)
		require.Len(t, doctors, 2)
		assert.Equal(t, "dramel", doctors[0].Username)
		assert.Equal(t, "drkhaled", doctors[1].Username)
	})

	t.Run("any reports emptiness", func(t *testing.T) {
		users := database.NewUserAdapter(newTestDB(t), zerolog.Nop())

		exists, err := users.Any(ctx)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, users.Create(ctx, &entities.User{Username: "admin", PasswordHash: "h", Role: entities.RoleAdmin}))
		exists, err = users.Any(ctx)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestAuditAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("append and list newest first", func(t *testing.T) {
		pool := newTestDB(t)
		users := database.NewUserAdapter(pool, zerolog.Nop())
		audit := database.NewAuditAdapter(pool, zerolog.Nop())

		user := &entities.User{Username: "sonia", PasswordHash: "h", Role: entities.RoleReceptionist}
		require.NoError(t, users.Create(ctx, user))

		base := time.Now().Truncate(time.Second)
		require.NoError(t, audit.Append(ctx, &entities.AuditEntry{
			Action:    "login_failed",
			Timestamp: base.Add(-time.Minute),
			Details:   "unknown username",
		}))
		require.NoError(t, audit.Append(ctx, &entities.AuditEntry{
			UserID:    &user.ID,
			Action:    "patient_arrived",
			Timestamp: base,
			Details:   "Amel",
		}))

		entries, err := audit.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, "patient_arrived", entries[0].Action)
		require.NotNil(t, entries[0].UserID)
		assert.Equal(t, user.ID, *entries[0].UserID)

		assert.Equal(t, "login_failed", entries[1].Action)
		assert.Nil(t, entries[1].UserID)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		audit := database.NewAuditAdapter(newTestDB(t), zerolog.Nop())
		base := time.Now().Truncate(time.Second)
		for i := 0; i < 5; i++ {
			require.NoError(t, audit.Append(ctx, &entities.AuditEntry{
				Action:    "queue_refreshed",
				Timestamp: base.Add(time.Duration(i) * time.Second),
			}))
		}

		entries, err := audit.ListRecent(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("an unknown user id is rejected by the schema", func(t *testing.T) {
		audit := database.NewAuditAdapter(newTestDB(t), zerolog.Nop())
		ghost := int64(999)
		err := audit.Append(ctx, &entities.AuditEntry{UserID: &ghost, Action: "x", Timestamp: time.Now()})
		require.Error(t, err)
	})
}
