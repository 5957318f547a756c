package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

// userLogLimit caps how many entries a per-user listing returns.
const userLogLimit = 100

// ledgerUseCase implements LedgerUseCase backed by a LedgerRepository.
type ledgerUseCase struct {
	ledgerRepo LedgerRepository
	txManager  database.TxManager
}

// NewLedgerUseCase creates a new audit ledger use case.
func NewLedgerUseCase(ledgerRepo LedgerRepository, txManager database.TxManager) LedgerUseCase {
	return &ledgerUseCase{
		ledgerRepo: ledgerRepo,
		txManager:  txManager,
	}
}

// Append records the event in its own transaction.
func (l *ledgerUseCase) Append(
	ctx context.Context,
	event *auditDomain.Event,
) (*auditDomain.AuditEntry, error) {
	var entry *auditDomain.AuditEntry

	err := l.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = l.appendLocked(ctx, event)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrLedgerWrite, err)
	}

	return entry, nil
}

// AppendInTx records the event on the transaction already present in the
// context. The table lock is still taken here, not just in Append, so an
// append inside a dispensing transaction cannot race a standalone append and
// fork the chain.
func (l *ledgerUseCase) AppendInTx(
	ctx context.Context,
	event *auditDomain.Event,
) (*auditDomain.AuditEntry, error) {
	return l.appendLocked(ctx, event)
}

// appendLocked performs the core append: lock, read tail, hash, insert.
// Requires a transaction in the context.
func (l *ledgerUseCase) appendLocked(
	ctx context.Context,
	event *auditDomain.Event,
) (*auditDomain.AuditEntry, error) {
	if err := event.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	if err := l.ledgerRepo.LockLedger(ctx); err != nil {
		return nil, err
	}

	tail, err := l.ledgerRepo.TailHash(ctx)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate audit entry id")
	}

	entry := &auditDomain.AuditEntry{
		ID: id,
		// Truncated to microseconds so the hashed timestamp survives the
		// PostgreSQL round-trip exactly.
		Timestamp:       time.Now().UTC().Truncate(time.Microsecond),
		ActorID:         event.ActorID,
		ActorRole:       event.ActorRole,
		Action:          event.Action,
		ResourceType:    event.ResourceType,
		ResourceID:      event.ResourceID,
		ResourceOwnerID: event.ResourceOwnerID,
		Metadata:        event.Metadata,
		PreviousHash:    tail,
	}

	entry.EntryHash, err = auditDomain.ComputeEntryHash(entry)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to compute entry hash")
	}

	if err := l.ledgerRepo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// VerifyChain walks the full ledger front to back.
func (l *ledgerUseCase) VerifyChain(ctx context.Context) (*auditDomain.ChainVerification, error) {
	entries, err := l.ledgerRepo.ListAscending(ctx)
	if err != nil {
		return nil, err
	}

	result := &auditDomain.ChainVerification{
		Valid:        true,
		TotalEntries: len(entries),
	}

	expected := auditDomain.SentinelHash
	for _, entry := range entries {
		if entry.PreviousHash != expected {
			result.Valid = false
			brokenID := entry.ID
			result.BrokenAtID = &brokenID
			return result, nil
		}

		recomputed, err := auditDomain.ComputeEntryHash(entry)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to recompute entry hash")
		}
		if recomputed != entry.EntryHash {
			result.Valid = false
			brokenID := entry.ID
			result.BrokenAtID = &brokenID
			return result, nil
		}

		expected = entry.EntryHash
	}

	return result, nil
}

// ListForResource returns the resource's audit trail, newest first.
func (l *ledgerUseCase) ListForResource(
	ctx context.Context,
	resourceID uuid.UUID,
) ([]*auditDomain.AuditEntry, error) {
	return l.ledgerRepo.ListForResource(ctx, resourceID)
}

// ListForUser returns the user's audit trail since their latest activation.
func (l *ledgerUseCase) ListForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*auditDomain.AuditEntry, error) {
	// Zero floor when the user has no activation entry, so the full history
	// (up to the cap) is visible.
	floor, err := l.ledgerRepo.LatestActivation(ctx, userID)
	if err != nil {
		return nil, err
	}

	return l.ledgerRepo.ListForUserSince(ctx, userID, floor, userLogLimit)
}
