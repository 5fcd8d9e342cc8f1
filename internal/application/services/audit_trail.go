package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
)

// AuditTrail is a fire-and-forget audit sink. Entries are handed to a
// buffered channel consumed by a single writer goroutine; a full buffer
// drops the entry and a failed write is logged and swallowed. Either way
// the operation being audited is never affected.
type AuditTrail struct {
	repo repositories.AuditRepository
	log  zerolog.Logger

	entries chan *entities.AuditEntry
	done    chan struct{}
	once    sync.Once
}

const auditBufferSize = 256

// NewAuditTrail creates the sink and starts its writer goroutine
func NewAuditTrail(repo repositories.AuditRepository, logger zerolog.Logger) *AuditTrail {
	t := &AuditTrail{
		repo:    repo,
		log:     logger.With().Str("component", "audit_trail").Logger(),
		entries: make(chan *entities.AuditEntry, auditBufferSize),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// Record enqueues one audit entry. It never blocks and never fails; when
// the buffer is full the entry is dropped and counted against nothing but
// a log line.
func (t *AuditTrail) Record(userID *int64, action, details string) {
	entry := &entities.AuditEntry{
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now(),
		Details:   details,
	}
	select {
	case t.entries <- entry:
	default:
		t.log.Warn().Str("action", action).Msg("audit buffer full, dropping entry")
	}
}

func (t *AuditTrail) run() {
	defer close(t.done)
	for entry := range t.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.repo.Append(ctx, entry); err != nil {
			t.log.Error().Err(err).Str("action", entry.Action).Msg("failed to write audit entry")
		}
		cancel()
	}
}

// Close stops accepting entries, waits for the buffer to drain, then
// returns. Safe to call more than once.
func (t *AuditTrail) Close() {
	t.once.Do(func() {
		close(t.entries)
	})
	<-t.done
}
