package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	"github.com/splitrx/splitrx/internal/metrics"
)

// ledgerUseCaseWithMetrics decorates LedgerUseCase with metrics instrumentation.
type ledgerUseCaseWithMetrics struct {
	next    LedgerUseCase
	metrics metrics.BusinessMetrics
}

// NewLedgerUseCaseWithMetrics wraps a LedgerUseCase with metrics recording.
func NewLedgerUseCaseWithMetrics(useCase LedgerUseCase, m metrics.BusinessMetrics) LedgerUseCase {
	return &ledgerUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Append records metrics for standalone ledger appends.
func (l *ledgerUseCaseWithMetrics) Append(
	ctx context.Context,
	event *auditDomain.Event,
) (*auditDomain.AuditEntry, error) {
	start := time.Now()
	entry, err := l.next.Append(ctx, event)

	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "audit", "ledger_append", status)
	l.metrics.RecordDuration(ctx, "audit", "ledger_append", time.Since(start), status)

	return entry, err
}

// AppendInTx records metrics for transaction-bound ledger appends.
func (l *ledgerUseCaseWithMetrics) AppendInTx(
	ctx context.Context,
	event *auditDomain.Event,
) (*auditDomain.AuditEntry, error) {
	start := time.Now()
	entry, err := l.next.AppendInTx(ctx, event)

	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "audit", "ledger_append_tx", status)
	l.metrics.RecordDuration(ctx, "audit", "ledger_append_tx", time.Since(start), status)

	return entry, err
}

// VerifyChain records metrics for full-chain verification runs.
func (l *ledgerUseCaseWithMetrics) VerifyChain(ctx context.Context) (*auditDomain.ChainVerification, error) {
	start := time.Now()
	result, err := l.next.VerifyChain(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "audit", "chain_verify", status)
	l.metrics.RecordDuration(ctx, "audit", "chain_verify", time.Since(start), status)

	return result, err
}

// ListForResource records metrics for resource audit trail listings.
func (l *ledgerUseCaseWithMetrics) ListForResource(
	ctx context.Context,
	resourceID uuid.UUID,
) ([]*auditDomain.AuditEntry, error) {
	start := time.Now()
	entries, err := l.next.ListForResource(ctx, resourceID)

	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "audit", "logs_for_resource", status)
	l.metrics.RecordDuration(ctx, "audit", "logs_for_resource", time.Since(start), status)

	return entries, err
}

// ListForUser records metrics for per-user audit trail listings.
func (l *ledgerUseCaseWithMetrics) ListForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*auditDomain.AuditEntry, error) {
	start := time.Now()
	entries, err := l.next.ListForUser(ctx, userID)

	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "audit", "logs_for_user", status)
	l.metrics.RecordDuration(ctx, "audit", "logs_for_user", time.Since(start), status)

	return entries, err
}
