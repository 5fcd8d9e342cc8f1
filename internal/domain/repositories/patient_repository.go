package repositories

import (
	"context"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations.
// Patients are never deleted; the name is the sole de-duplication key.
type PatientRepository interface {
	// Create inserts a new patient and fills in its id. Returns a
	// CONFLICT error when the name is already registered.
	Create(ctx context.Context, patient *entities.Patient) error

	// GetOrCreate returns the patient registered under name, creating it
	// on first registration.
	GetOrCreate(ctx context.Context, name, phoneNumber string) (*entities.Patient, error)

	// GetByID retrieves a patient by id
	GetByID(ctx context.Context, id int64) (*entities.Patient, error)

	// GetByName retrieves a patient by exact name match
	GetByName(ctx context.Context, name string) (*entities.Patient, error)

	// List retrieves all patients ordered by name
	List(ctx context.Context) ([]*entities.Patient, error)
}

// ServiceRepository defines the interface for billable service operations.
// Services are updated in place rather than deleted, since visit/service
// association rows reference them by id.
type ServiceRepository interface {
	// Upsert creates the service or updates its price in place
	Upsert(ctx context.Context, name string, price int64) error

	// GetByName retrieves a service by exact name match
	GetByName(ctx context.Context, name string) (*entities.Service, error)

	// List retrieves all services ordered by name
	List(ctx context.Context) ([]*entities.Service, error)

	// Delete removes a service by name. Fails with CONFLICT while visit
	// associations still reference it.
	Delete(ctx context.Context, name string) error
}
