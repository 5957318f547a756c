// Package usecase implements the prescription lifecycle: issue with
// sign-then-encrypt, authorized reads with lazy expiry, and QR generation.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/prescription/domain"
)

// PrescriptionRepository defines prescription persistence operations.
type PrescriptionRepository interface {
	Create(ctx context.Context, prescription *domain.Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Prescription, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*domain.Prescription, error)
	ListByPatientAndDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*domain.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*domain.Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	MarkDispensed(ctx context.Context, id uuid.UUID, pharmacistID uuid.UUID, dispensedAt time.Time) error
	CancelAllActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

// ConsentChecker reports whether a patient has an unrevoked consent grant for
// the given user. Implemented by the consent repository.
type ConsentChecker interface {
	HasActiveConsent(ctx context.Context, patientID, grantedTo uuid.UUID) (bool, error)
}

// CreateInput contains the input data for issuing a prescription.
type CreateInput struct {
	PatientID     uuid.UUID           `json:"patient_id"`
	Medications   []domain.Medication `json:"medications"`
	Notes         string              `json:"notes"`
	ExpiresInDays int                 `json:"expires_in_days"`
}

// DecryptedPrescription pairs a prescription with its clinical payload,
// decrypted on the way out of a listing.
type DecryptedPrescription struct {
	Prescription *domain.Prescription
	Payload      *domain.Payload
}

// UseCase defines the interface for prescription business logic.
type UseCase interface {
	// Create issues a prescription: the clinical payload is hashed, the hash
	// signed with the doctor's private key, and the payload encrypted under
	// the master key before anything is persisted.
	Create(ctx context.Context, doctorID uuid.UUID, input CreateInput) (*domain.Prescription, error)
	// Get returns the prescription and its decrypted payload for an
	// authorized actor. An active prescription past its expiry is moved to
	// expired on the way out.
	Get(ctx context.Context, actorID, prescriptionID uuid.UUID) (*domain.Prescription, *domain.Payload, error)
	// ListForPatient is allowed for the patient themselves, for admins, and
	// for a doctor the patient has granted consent to; the doctor sees only
	// the prescriptions they authored. Every returned record is decrypted on
	// the way out, so a corrupted payload fails the whole listing with an
	// integrity error instead of being silently included.
	ListForPatient(ctx context.Context, actorID, patientID uuid.UUID) ([]*DecryptedPrescription, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*domain.Prescription, error)
	// GenerateQR renders the prescription's verification reference (id,
	// number, payload hash, participant ids) as a PNG QR code for the owning
	// patient of a still-active prescription. The clinical payload is never
	// part of the QR content.
	GenerateQR(ctx context.Context, actorID, prescriptionID uuid.UUID) ([]byte, error)
}
