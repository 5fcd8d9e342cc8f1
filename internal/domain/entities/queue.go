package entities

import "time"

// QueueEntry is one patient's position in the day's queue projection.
type QueueEntry struct {
	VisitID     int64
	PatientID   int64
	PatientName string
	ArrivedAt   time.Time
	CalledAt    *time.Time
}

// QueueSnapshot is the in-memory projection of today's visit rows. It is
// rebuilt from the store on every refresh and never persisted; the rows
// are the source of truth.
type QueueSnapshot struct {
	// Waiting is ordered by arrival, oldest first.
	Waiting []QueueEntry

	// InConsultation is the patient currently with the doctor, if any.
	InConsultation *QueueEntry

	// VisitedToday holds today's completed, non-cancelled visits.
	VisitedToday []QueueEntry

	RefreshedAt time.Time
}

// Clone returns a deep copy so callers can hold the snapshot without
// racing the next refresh.
func (s QueueSnapshot) Clone() QueueSnapshot {
	out := QueueSnapshot{RefreshedAt: s.RefreshedAt}
	out.Waiting = append([]QueueEntry(nil), s.Waiting...)
	out.VisitedToday = append([]QueueEntry(nil), s.VisitedToday...)
	if s.InConsultation != nil {
		entry := *s.InConsultation
		out.InConsultation = &entry
	}
	return out
}
