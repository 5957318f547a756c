package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/consent/domain"
	"github.com/splitrx/splitrx/internal/metrics"
)

// consentUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type consentUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps a consent UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &consentUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *consentUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordOperation(ctx, "consent", operation, status)
	c.metrics.RecordDuration(ctx, "consent", operation, time.Since(start), status)
}

func (c *consentUseCaseWithMetrics) Grant(
	ctx context.Context,
	patientID, grantedTo uuid.UUID,
	scope string,
) (*domain.ConsentRecord, error) {
	start := time.Now()
	record, err := c.next.Grant(ctx, patientID, grantedTo, scope)
	c.record(ctx, "consent_grant", start, err)
	return record, err
}

func (c *consentUseCaseWithMetrics) Revoke(ctx context.Context, patientID, consentID uuid.UUID) error {
	start := time.Now()
	err := c.next.Revoke(ctx, patientID, consentID)
	c.record(ctx, "consent_revoke", start, err)
	return err
}

func (c *consentUseCaseWithMetrics) ListForPatient(
	ctx context.Context,
	actorID, patientID uuid.UUID,
) ([]*domain.ConsentRecord, error) {
	start := time.Now()
	records, err := c.next.ListForPatient(ctx, actorID, patientID)
	c.record(ctx, "consent_list", start, err)
	return records, err
}

func (c *consentUseCaseWithMetrics) RequestDataErasure(ctx context.Context, patientID uuid.UUID) error {
	start := time.Now()
	err := c.next.RequestDataErasure(ctx, patientID)
	c.record(ctx, "data_erasure", start, err)
	return err
}
