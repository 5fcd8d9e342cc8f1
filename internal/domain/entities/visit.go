package entities

import "time"

// VisitState is the lifecycle state of a visit, computed from the row's
// timestamps and the cancelled discriminator when the row is loaded.
type VisitState string

const (
	VisitStateWaiting        VisitState = "Waiting"
	VisitStateInConsultation VisitState = "InConsultation"
	VisitStateCompleted      VisitState = "Completed"
	VisitStateCancelled      VisitState = "Cancelled"
)

// Visit is one attendance record for a patient on a given day. The row
// itself carries no status column; state is derived from which lifecycle
// timestamps are set, with an explicit flag distinguishing a cancelled
// visit from a zero-cost completed one.
type Visit struct {
	ID        int64
	PatientID int64

	// PatientName is a display attribute joined in from the patients
	// table; lifecycle operations never key on it.
	PatientName string

	Date         time.Time
	ArrivedAt    time.Time
	CalledAt     *time.Time
	CheckedOutAt *time.Time
	TotalPaid    *int64
	Cancelled    bool
}

// State classifies the visit.
func (v *Visit) State() VisitState {
	switch {
	case v.Cancelled:
		return VisitStateCancelled
	case v.CheckedOutAt != nil:
		return VisitStateCompleted
	case v.CalledAt != nil:
		return VisitStateInConsultation
	default:
		return VisitStateWaiting
	}
}

// Transaction is an append-only payment record written at checkout.
type Transaction struct {
	ID          int64     `db:"transaction_id"`
	VisitID     int64     `db:"visit_id"`
	PatientName string    `db:"patient_name"`
	Amount      int64     `db:"amount"`
	Timestamp   time.Time `db:"-"`
}

// AuditEntry is one append-only audit log row. UserID is nil for actions
// taken before login.
type AuditEntry struct {
	ID        int64
	UserID    *int64
	Action    string
	Timestamp time.Time
	Details   string
}
