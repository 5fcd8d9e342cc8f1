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
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

type visitFixture struct {
	pool     *sqlite.Pool
	patients repositories.PatientRepository
	services repositories.ServiceRepository
	visits   repositories.VisitRepository
	reports  repositories.ReportRepository
}

func newVisitFixture(t *testing.T) *visitFixture {
	t.Helper()
	pool := newTestDB(t)
	return &visitFixture{
		pool:     pool,
		patients: database.NewPatientAdapter(pool, zerolog.Nop()),
		services: database.NewServiceAdapter(pool, zerolog.Nop()),
		visits:   database.NewVisitAdapter(pool, zerolog.Nop()),
		reports:  database.NewReportAdapter(pool, zerolog.Nop()),
	}
}

func (f *visitFixture) arrive(t *testing.T, ctx context.Context, name string, at time.Time) *entities.Visit {
	t.Helper()
	patient, err := f.patients.GetOrCreate(ctx, name, "")
	require.NoError(t, err)
	visit := &entities.Visit{PatientID: patient.ID, ArrivedAt: at}
	require.NoError(t, f.visits.Create(ctx, visit))
	return visit
}

func TestVisitAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	today := time.Now()
	base := time.Date(today.Year(), today.Month(), today.Day(), 9, 0, 0, 0, time.Local)

	t.Run("full day for one patient", func(t *testing.T) {
		f := newVisitFixture(t)
		require.NoError(t, f.services.Upsert(ctx, "Consultation", 1500))
		consultation, err := f.services.GetByName(ctx, "Consultation")
		require.NoError(t, err)

		arrived := base
		visit := f.arrive(t, ctx, "Amel", arrived)

		loaded, err := f.visits.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateWaiting, loaded.State())
		assert.Equal(t, "Amel", loaded.PatientName)
		assert.Equal(t, arrived.Format(entities.TimeLayout), loaded.ArrivedAt.Format(entities.TimeLayout))
		assert.Nil(t, loaded.TotalPaid)

		calledAt := arrived.Add(5 * time.Minute)
		called, err := f.visits.CallNext(ctx, visit.PatientID, calledAt)
		require.NoError(t, err)
		assert.True(t, called)

		loaded, err = f.visits.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateInConsultation, loaded.State())
		require.NotNil(t, loaded.CalledAt)
		assert.Equal(t, calledAt.Format(entities.TimeLayout), loaded.CalledAt.Format(entities.TimeLayout))

		require.NoError(t, f.visits.Checkout(ctx, visit.ID, 1500, []int64{consultation.ID}))

		loaded, err = f.visits.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateCompleted, loaded.State())
		require.NotNil(t, loaded.TotalPaid)
		assert.Equal(t, int64(1500), *loaded.TotalPaid)

		billed, err := f.visits.ServicesForVisit(ctx, visit.ID)
		require.NoError(t, err)
		require.Len(t, billed, 1)
		assert.Equal(t, "Consultation", billed[0].Name)

		payments, err := f.visits.TransactionsForVisit(ctx, visit.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, int64(1500), payments[0].Amount)
		assert.Equal(t, "Amel", payments[0].PatientName)

		summary, err := f.reports.FinancialSummary(ctx, today, today)
		require.NoError(t, err)
		assert.Equal(t, int64(1), summary.TotalVisits)
		assert.Equal(t, int64(1500), summary.TotalRevenue)
	})

	t.Run("same patient can arrive twice in one day", func(t *testing.T) {
		f := newVisitFixture(t)
		first := f.arrive(t, ctx, "Karim", base.Add(-2*time.Hour))
		second := f.arrive(t, ctx, "Karim", base)
		assert.NotEqual(t, first.ID, second.ID)

		visits, err := f.visits.ListByDate(ctx, today)
		require.NoError(t, err)
		require.Len(t, visits, 2)
		assert.Equal(t, entities.VisitStateWaiting, visits[0].State())
		assert.Equal(t, entities.VisitStateWaiting, visits[1].State())

		// The newest waiting arrival is the one that gets called.
		called, err := f.visits.CallNext(ctx, second.PatientID, base)
		require.NoError(t, err)
		assert.True(t, called)

		loaded, err := f.visits.GetByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateInConsultation, loaded.State())

		loaded, err = f.visits.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateWaiting, loaded.State())
	})

	t.Run("calling with nothing waiting reports false without error", func(t *testing.T) {
		f := newVisitFixture(t)
		patient, err := f.patients.GetOrCreate(ctx, "Lina", "")
		require.NoError(t, err)

		called, err := f.visits.CallNext(ctx, patient.ID, today)
		require.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("listing is ordered by arrival", func(t *testing.T) {
		f := newVisitFixture(t)
		f.arrive(t, ctx, "Yasmine", base.Add(10*time.Minute))
		f.arrive(t, ctx, "Rachid", base)

		visits, err := f.visits.ListByDate(ctx, today)
		require.NoError(t, err)
		require.Len(t, visits, 2)
		assert.Equal(t, "Rachid", visits[0].PatientName)
		assert.Equal(t, "Yasmine", visits[1].PatientName)
	})

	t.Run("visit for an unknown patient is rejected", func(t *testing.T) {
		f := newVisitFixture(t)
		err := f.visits.Create(ctx, &entities.Visit{PatientID: 999, ArrivedAt: today})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestVisitAdapter_Cancel(t *testing.T) {
	ctx := context.Background()
	today := time.Now()
	base := time.Date(today.Year(), today.Month(), today.Day(), 9, 0, 0, 0, time.Local)

	t.Run("cancelling a waiting visit zeroes the bill and closes it", func(t *testing.T) {
		f := newVisitFixture(t)
		visit := f.arrive(t, ctx, "Amel", base)

		require.NoError(t, f.visits.Cancel(ctx, visit.ID, base))

		loaded, err := f.visits.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateCancelled, loaded.State())
		require.NotNil(t, loaded.TotalPaid)
		assert.Equal(t, int64(0), *loaded.TotalPaid)
		assert.NotNil(t, loaded.CalledAt)
		assert.NotNil(t, loaded.CheckedOutAt)

		// A cancelled visit never counts as revenue or as a completed visit.
		summary, err := f.reports.FinancialSummary(ctx, today, today)
		require.NoError(t, err)
		assert.Equal(t, int64(0), summary.TotalVisits)
		assert.Equal(t, int64(0), summary.TotalRevenue)
	})

	t.Run("a called visit cannot be cancelled", func(t *testing.T) {
		f := newVisitFixture(t)
		visit := f.arrive(t, ctx, "Karim", base)
		called, err := f.visits.CallNext(ctx, visit.PatientID, base)
		require.NoError(t, err)
		require.True(t, called)

		err = f.visits.Cancel(ctx, visit.ID, today)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("cancelling an unknown visit is not found", func(t *testing.T) {
		f := newVisitFixture(t)
		err := f.visits.Cancel(ctx, 42, today)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("a cancelled visit is distinguishable from a free completed one", func(t *testing.T) {
		f := newVisitFixture(t)
		cancelled := f.arrive(t, ctx, "Sara", base)
		require.NoError(t, f.visits.Cancel(ctx, cancelled.ID, base))

		free := f.arrive(t, ctx, "Nadia", base)
		called, err := f.visits.CallNext(ctx, free.PatientID, base)
		require.NoError(t, err)
		require.True(t, called)
		require.NoError(t, f.visits.Checkout(ctx, free.ID, 0, nil))

		loadedCancelled, err := f.visits.GetByID(ctx, cancelled.ID)
		require.NoError(t, err)
		loadedFree, err := f.visits.GetByID(ctx, free.ID)
		require.NoError(t, err)

		assert.Equal(t, entities.VisitStateCancelled, loadedCancelled.State())
		assert.Equal(t, entities.VisitStateCompleted, loadedFree.State())

		summary, err := f.reports.FinancialSummary(ctx, today, today)
		require.NoError(t, err)
		assert.Equal(t, int64(1), summary.TotalVisits)
		assert.Equal(t, int64(0), summary.TotalRevenue)
	})
}

func TestVisitAdapter_Checkout(t *testing.T) {
	ctx := context.Background()
	today := time.Now()
	base := time.Date(today.Year(), today.Month(), today.Day(), 9, 0, 0, 0, time.Local)

	t.Run("checkout of an unknown visit is not found", func(t *testing.T) {
		f := newVisitFixture(t)
		err := f.visits.Checkout(ctx, 42, 1000, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})

	t.Run("an invalid service id rolls the whole checkout back", func(t *testing.T) {
		f := newVisitFixture(t)
		visit := f.arrive(t, ctx, "Amel", base)
		called, err := f.visits.CallNext(ctx, visit.PatientID, base)
		require.NoError(t, err)
		require.True(t, called)

		err = f.visits.Checkout(ctx, visit.ID, 1500, []int64{999})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

		loaded, err := f.visits.GetByID(ctx, visit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.VisitStateInConsultation, loaded.State())
		assert.Nil(t, loaded.TotalPaid)

		payments, err := f.visits.TransactionsForVisit(ctx, visit.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	t.Run("multiple services are billed together", func(t *testing.T) {
		f := newVisitFixture(t)
		require.NoError(t, f.services.Upsert(ctx, "Consultation", 1500))
		require.NoError(t, f.services.Upsert(ctx, "ECG", 2500))
		consultation, err := f.services.GetByName(ctx, "Consultation")
		require.NoError(t, err)
		ecg, err := f.services.GetByName(ctx, "ECG")
		require.NoError(t, err)

		visit := f.arrive(t, ctx, "Karim", base)
		called, err := f.visits.CallNext(ctx, visit.PatientID, base)
		require.NoError(t, err)
		require.True(t, called)

		require.NoError(t, f.visits.Checkout(ctx, visit.ID, 4000, []int64{consultation.ID, ecg.ID}))

		billed, err := f.visits.ServicesForVisit(ctx, visit.ID)
		require.NoError(t, err)
		require.Len(t, billed, 2)
	})
}
