package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// QueueService owns the day's queue projection and every lifecycle
// operation that mutates it. The persisted visit rows are the source of
// truth; the in-memory snapshot is rebuilt from them on a fixed interval
// and after each mutating operation, and is only ever written by Refresh.
type QueueService struct {
	visits   repositories.VisitRepository
	patients repositories.PatientRepository
	audit    *AuditTrail
	log      zerolog.Logger

	// allowRepeatArrival permits a second same-day arrival while the
	// patient is still waiting or in consultation.
	allowRepeatArrival bool

	mu       sync.RWMutex
	snapshot entities.QueueSnapshot
}

// NewQueueService creates a new queue service
func NewQueueService(
	visits repositories.VisitRepository,
	patients repositories.PatientRepository,
	audit *AuditTrail,
	allowRepeatArrival bool,
	logger zerolog.Logger,
) *QueueService {
	return &QueueService{
		visits:             visits,
		patients:           patients,
		audit:              audit,
		allowRepeatArrival: allowRepeatArrival,
		log:                logger.With().Str("component", "queue_service").Logger(),
	}
}

// Refresh rebuilds the projection from today's visit rows.
func (s *QueueService) Refresh(ctx context.Context) error {
	now := time.Now()
	visits, err := s.visits.ListByDate(ctx, now)
	if err != nil {
		return err
	}

	next := entities.QueueSnapshot{RefreshedAt: now}
	for _, visit := range visits {
		entry := entities.QueueEntry{
			VisitID:     visit.ID,
			PatientID:   visit.PatientID,
			PatientName: visit.PatientName,
			ArrivedAt:   visit.ArrivedAt,
			CalledAt:    visit.CalledAt,
		}
		switch visit.State() {
		case entities.VisitStateWaiting:
			next.Waiting = append(next.Waiting, entry)
		case entities.VisitStateInConsultation:
			next.InConsultation = &entry
		case entities.VisitStateCompleted:
			next.VisitedToday = append(next.VisitedToday, entry)
		case entities.VisitStateCancelled:
			// cancelled visits appear in no list
		}
	}

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()

	s.log.Debug().
		Int("waiting", len(next.Waiting)).
		Int("visited", len(next.VisitedToday)).
		Bool("in_consultation", next.InConsultation != nil).
		Msg("queue projection refreshed")
	return nil
}

// Snapshot returns a copy of the current projection.
func (s *QueueService) Snapshot() entities.QueueSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Run refreshes the projection on the given interval until ctx is
// cancelled. A refresh that outlives the interval simply delays the next
// tick; refreshes never overlap.
func (s *QueueService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Error().Err(err).Msg("periodic queue refresh failed")
			}
		}
	}
}

// RegisterArrival resolves (or registers) the patient by name and checks
// them into the waiting queue.
func (s *QueueService) RegisterArrival(ctx context.Context, patientName, phoneNumber string, userID int64) (*entities.Visit, error) {
	patient, err := s.patients.GetOrCreate(ctx, patientName, phoneNumber)
	if err != nil {
		return nil, err
	}
	return s.Arrive(ctx, patient.ID, userID)
}

// Arrive inserts a new waiting visit for the patient. With repeat arrivals
// disabled, a patient already waiting or in consultation today is rejected
// with a CONFLICT error.
func (s *QueueService) Arrive(ctx context.Context, patientID, userID int64) (*entities.Visit, error) {
	if !s.allowRepeatArrival {
		active, err := s.hasActiveVisit(ctx, patientID)
		if err != nil {
			return nil, err
		}
		if active {
			return nil, apperrors.NewConflictError(fmt.Sprintf("patient %d is already in today's queue", patientID))
		}
	}

	now := time.Now()
	visit := &entities.Visit{
		PatientID: patientID,
		Date:      now,
		ArrivedAt: now,
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, err
	}

	s.audit.Record(&userID, "add_visit", fmt.Sprintf("patient_id: %d, visit_id: %d", patientID, visit.ID))
	if err := s.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh after arrival failed")
	}
	return visit, nil
}

func (s *QueueService) hasActiveVisit(ctx context.Context, patientID int64) (bool, error) {
	visits, err := s.visits.ListByDate(ctx, time.Now())
	if err != nil {
		return false, err
	}
	for _, v := range visits {
		if v.PatientID != patientID {
			continue
		}
		if state := v.State(); state == entities.VisitStateWaiting || state == entities.VisitStateInConsultation {
			return true, nil
		}
	}
	return false, nil
}

// CallPatient calls the named patient in for consultation. The name is
// resolved to a patient id once; the transition itself is id-keyed.
// Returns false when the patient is unknown or has no waiting visit today;
// that is "nothing to call", not an error.
func (s *QueueService) CallPatient(ctx context.Context, patientName string, at time.Time, userID int64) (bool, error) {
	patient, err := s.patients.GetByName(ctx, patientName)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return false, nil
		}
		return false, err
	}

	called, err := s.visits.CallNext(ctx, patient.ID, at)
	if err != nil {
		return false, err
	}
	if !called {
		return false, nil
	}

	s.audit.Record(&userID, "call_patient", fmt.Sprintf("patient_id: %d", patient.ID))
	if err := s.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh after call failed")
	}
	return true, nil
}

// Checkout completes the visit currently in consultation. Duplicate
// service ids are collapsed before the association rows are written.
func (s *QueueService) Checkout(ctx context.Context, visitID, totalPaid int64, serviceIDs []int64, userID int64) error {
	if totalPaid < 0 {
		return apperrors.NewValidationError("total paid cannot be negative")
	}

	if err := s.visits.Checkout(ctx, visitID, totalPaid, dedupe(serviceIDs)); err != nil {
		return err
	}

	s.audit.Record(&userID, "checkout_visit", fmt.Sprintf("visit_id: %d, total_paid: %d", visitID, totalPaid))
	if err := s.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh after checkout failed")
	}
	return nil
}

// Cancel removes a waiting visit from the queue without a consultation.
func (s *QueueService) Cancel(ctx context.Context, visitID, userID int64) error {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return err
	}
	if visit.State() != entities.VisitStateWaiting {
		return apperrors.NewConflictError(fmt.Sprintf("visit %d is not waiting", visitID))
	}

	if err := s.visits.Cancel(ctx, visitID, time.Now()); err != nil {
		return err
	}

	s.audit.Record(&userID, "cancel_visit", fmt.Sprintf("visit_id: %d, patient_id: %d", visitID, visit.PatientID))
	if err := s.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh after cancel failed")
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
