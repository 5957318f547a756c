// Package usecase implements pharmacy-side verification and the dispensing
// state machine: a read-only verification report, and a transactional
// verify-and-dispense that settles a prescription exactly once.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/dispensing/domain"
)

// DispensingRepository defines dispensing record persistence operations.
type DispensingRepository interface {
	Create(ctx context.Context, record *domain.DispensingRecord) error
	GetByPrescriptionID(ctx context.Context, prescriptionID uuid.UUID) (*domain.DispensingRecord, error)
	ListByPharmacist(ctx context.Context, pharmacistID uuid.UUID) ([]*domain.HistoryEntry, error)
}

// UseCase defines the interface for dispensing business logic.
type UseCase interface {
	// Verify runs the full verification (status, expiry, signature,
	// integrity) without changing any state and returns the report.
	Verify(ctx context.Context, pharmacistID, prescriptionID uuid.UUID) (*domain.VerificationReport, error)
	// VerifyAndDispense re-runs every check under a row lock and, if all
	// pass, marks the prescription dispensed and writes the dispensing
	// record and ledger entry in the same transaction. Rejections are
	// audited even though the transaction rolls back.
	VerifyAndDispense(
		ctx context.Context,
		pharmacistID uuid.UUID,
		pharmacyName string,
		prescriptionID uuid.UUID,
	) (*domain.DispensingRecord, error)
	// History returns the pharmacist's most recent dispensing records, newest
	// first, joined with the prescription number and participant names.
	History(ctx context.Context, pharmacistID uuid.UUID) ([]*domain.HistoryEntry, error)
}
