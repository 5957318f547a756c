// Package usecase implements the append and verification logic for the
// hash-chained audit ledger. Appends serialize on a table lock so the chain
// never forks; verification walks the whole ledger and recomputes every hash.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
)

// LedgerRepository defines the interface for audit entry persistence.
type LedgerRepository interface {
	// LockLedger must be called within a transaction before reading the tail.
	LockLedger(ctx context.Context) error
	TailHash(ctx context.Context) (string, error)
	Insert(ctx context.Context, entry *auditDomain.AuditEntry) error
	ListAscending(ctx context.Context) ([]*auditDomain.AuditEntry, error)
	ListForResource(ctx context.Context, resourceID uuid.UUID) ([]*auditDomain.AuditEntry, error)
	LatestActivation(ctx context.Context, userID uuid.UUID) (time.Time, error)
	ListForUserSince(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*auditDomain.AuditEntry, error)
}

// LedgerUseCase defines the interface for audit ledger business logic.
type LedgerUseCase interface {
	// Append records an event in its own transaction. Failures surface as
	// ErrLedgerWrite; callers on non-critical paths log and continue.
	Append(ctx context.Context, event *auditDomain.Event) (*auditDomain.AuditEntry, error)
	// AppendInTx records an event on the caller's transaction, so the entry
	// commits or rolls back together with the caller's mutation. Failures
	// propagate unwrapped and must abort the caller's transaction.
	AppendInTx(ctx context.Context, event *auditDomain.Event) (*auditDomain.AuditEntry, error)
	// VerifyChain recomputes every entry hash and checks each previous-hash
	// link, reporting the first entry where the chain breaks.
	VerifyChain(ctx context.Context) (*auditDomain.ChainVerification, error)
	ListForResource(ctx context.Context, resourceID uuid.UUID) ([]*auditDomain.AuditEntry, error)
	// ListForUser returns the user's recent audit trail, floored at their
	// latest registration or reactivation so a re-onboarded user does not see
	// entries from before their account was reset.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*auditDomain.AuditEntry, error)
}
