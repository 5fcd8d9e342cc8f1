package repositories

import (
	"context"
	"time"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
)

// VisitRepository defines the interface for visit lifecycle operations.
// All operations are keyed by ids; patient names are display attributes.
type VisitRepository interface {
	// Create inserts a new waiting visit (arrived now, not called, not
	// checked out) and fills in its id.
	Create(ctx context.Context, visit *entities.Visit) error

	// GetByID retrieves a visit by id, with the patient name joined in
	GetByID(ctx context.Context, id int64) (*entities.Visit, error)

	// ListByDate retrieves all visits for a calendar day ordered by
	// arrival, oldest first, with patient names joined in.
	ListByDate(ctx context.Context, date time.Time) ([]*entities.Visit, error)

	// CallNext marks the patient's most recent uncalled visit of the day
	// as called. Returns false when there is nothing to call; that is not
	// an error.
	CallNext(ctx context.Context, patientID int64, calledAt time.Time) (bool, error)

	// Checkout completes a visit: sets the checkout timestamp and total
	// paid, records one association row per service id, and appends a
	// payment transaction. All statements commit together or not at all.
	Checkout(ctx context.Context, visitID int64, totalPaid int64, serviceIDs []int64) error

	// Cancel terminates a waiting visit without a consultation: both
	// lifecycle timestamps are set to now, total paid is zero, and the
	// cancelled flag is raised.
	Cancel(ctx context.Context, visitID int64, at time.Time) error

	// ServicesForVisit retrieves the services associated with a visit
	ServicesForVisit(ctx context.Context, visitID int64) ([]*entities.Service, error)

	// TransactionsForVisit retrieves the payment records of a visit
	TransactionsForVisit(ctx context.Context, visitID int64) ([]*entities.Transaction, error)
}
