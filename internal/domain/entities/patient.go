package entities

import "time"

// Timestamp layouts used across the persistence layer. Timestamps are
// stored as TEXT in the database file.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "2006-01-02 15:04:05"
)

// Patient represents a registered patient. Name is the de-duplication key
// (exact match); it is unique in the store.
type Patient struct {
	ID          int64
	Name        string
	PhoneNumber string
	FirstSeen   time.Time
}

// Service represents a billable service with a fixed price in integer
// currency units.
type Service struct {
	ID    int64  `db:"service_id"`
	Name  string `db:"name"`
	Price int64  `db:"price"`
}
