// Package usecase implements consent grants, revocation, and patient data
// erasure.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/consent/domain"
)

// ConsentRepository defines consent record persistence operations.
type ConsentRepository interface {
	Create(ctx context.Context, record *domain.ConsentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ConsentRecord, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForPatient(ctx context.Context, patientID uuid.UUID) error
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*domain.ConsentRecord, error)
	HasActiveConsent(ctx context.Context, patientID, grantedTo uuid.UUID) (bool, error)
}

// PrescriptionCanceller cancels a patient's active prescriptions during data
// erasure. Implemented by the prescription repository.
type PrescriptionCanceller interface {
	CancelAllActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

// UserDeactivator flips a user's active flag. Implemented by the user
// repository.
type UserDeactivator interface {
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// UseCase defines the interface for consent business logic.
type UseCase interface {
	// Grant records the patient's consent for another clinician to read
	// their prescriptions.
	Grant(ctx context.Context, patientID, grantedTo uuid.UUID, scope string) (*domain.ConsentRecord, error)
	// Revoke withdraws a grant. The record stays, with revoked_at set.
	Revoke(ctx context.Context, patientID, consentID uuid.UUID) error
	// ListForPatient returns the patient's grants, revoked ones included.
	ListForPatient(ctx context.Context, actorID, patientID uuid.UUID) ([]*domain.ConsentRecord, error)
	// RequestDataErasure cancels the patient's active prescriptions, revokes
	// their grants, and deactivates the account in one transaction. Audit
	// entries and dispensed history remain; the ledger is append-only.
	RequestDataErasure(ctx context.Context, patientID uuid.UUID) error
}
