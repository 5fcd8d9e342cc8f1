package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabinethub/clinicdesk/internal/application/services"
	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// memAuditRepo collects appended entries in memory, optionally failing
// every write.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []*entities.AuditEntry
	fail    bool
}

func (r *memAuditRepo) Append(_ context.Context, entry *entities.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return apperrors.NewInternalError("audit store unavailable", nil)
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) ListRecent(_ context.Context, _ int) ([]*entities.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.AuditEntry(nil), r.entries...), nil
}

func (r *memAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestAuditTrail(t *testing.T) {
	t.Run("entries are drained before close returns", func(t *testing.T) {
		repo := &memAuditRepo{}
		trail := services.NewAuditTrail(repo, zerolog.Nop())

		userID := int64(7)
		trail.Record(&userID, "login", "username: sonia")
		trail.Record(nil, "login_failed", "username: ghost")
		trail.Close()

		require.Equal(t, 2, repo.count())
		assert.Equal(t, "login", repo.entries[0].Action)
		require.NotNil(t, repo.entries[0].UserID)
		assert.Equal(t, int64(7), *repo.entries[0].UserID)
		assert.Nil(t, repo.entries[1].UserID)
		assert.False(t, repo.entries[0].Timestamp.IsZero())
	})

	t.Run("a failing store never surfaces to the caller", func(t *testing.T) {
		repo := &memAuditRepo{fail: true}
		trail := services.NewAuditTrail(repo, zerolog.Nop())

		// Record must not block, panic, or return anything to check.
		trail.Record(nil, "add_visit", "visit_id: 1")
		trail.Close()
		assert.Equal(t, 0, repo.count())
	})

	t.Run("close is safe to call twice", func(t *testing.T) {
		trail := services.NewAuditTrail(&memAuditRepo{}, zerolog.Nop())
		trail.Close()
		trail.Close()
	})

	t.Run("a burst within the buffer is fully persisted", func(t *testing.T) {
		repo := &memAuditRepo{}
		trail := services.NewAuditTrail(repo, zerolog.Nop())
		for i := 0; i < 50; i++ {
			trail.Record(nil, "queue_refreshed", "")
		}
		trail.Close()
		assert.Equal(t, 50, repo.count())
	})

	t.Run("concurrent recorders", func(t *testing.T) {
		repo := &memAuditRepo{}
		trail := services.NewAuditTrail(repo, zerolog.Nop())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					trail.Record(nil, "call_patient", "")
				}
			}()
		}
		wg.Wait()
		trail.Close()

		// The buffer is larger than the total; nothing should be dropped.
		assert.Equal(t, 80, repo.count())
	})

	t.Run("timestamps are assigned at record time", func(t *testing.T) {
		repo := &memAuditRepo{}
		trail := services.NewAuditTrail(repo, zerolog.Nop())

		before := time.Now()
		trail.Record(nil, "checkout_visit", "visit_id: 3")
		trail.Close()

		require.Equal(t, 1, repo.count())
		ts := repo.entries[0].Timestamp
		assert.False(t, ts.Before(before))
		assert.False(t, ts.After(time.Now()))
	})
}
