// Package domain defines dispensing records and verification reports.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/errors"
	prescriptionDomain "github.com/splitrx/splitrx/internal/prescription/domain"
)

// DispensingRecord is the persisted proof of a completed dispense. The
// prescription_id column is unique: a prescription dispenses exactly once.
type DispensingRecord struct {
	ID             uuid.UUID
	PrescriptionID uuid.UUID
	PharmacistID   uuid.UUID
	PharmacyName   string
	SignatureValid bool
	IntegrityValid bool
	// VerificationHash is a freshness marker computed at dispense time over
	// the prescription id, pharmacist id, and timestamp.
	VerificationHash string
	DispensedAt      time.Time
	CreatedAt        time.Time
}

// HistoryEntry is a dispensing record joined with the prescription number and
// the participants' names for the pharmacist's history view.
type HistoryEntry struct {
	DispensingRecord
	PrescriptionNumber string
	PatientName        string
	DoctorName         string
}

// VerificationReport is the result of a read-only verification at the
// pharmacy counter. Dispensable is true only when every check passed.
type VerificationReport struct {
	PrescriptionID     uuid.UUID
	PrescriptionNumber string
	Status             prescriptionDomain.Status
	Expired            bool
	SignatureValid     bool
	IntegrityValid     bool
	Dispensable        bool
	// Payload is populated only when the integrity check passed.
	Payload *prescriptionDomain.Payload
}

// Domain-specific errors for dispensing operations.
var (
	// ErrNotPharmacist indicates the actor is not a pharmacist.
	ErrNotPharmacist = errors.Wrap(errors.ErrUnauthorized, "only pharmacists can verify and dispense")

	// ErrPharmacyNameRequired indicates a dispense without a pharmacy name.
	ErrPharmacyNameRequired = errors.Wrap(errors.ErrInvalidInput, "pharmacy name is required")
)
