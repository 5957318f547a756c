package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/dispensing/domain"
	"github.com/splitrx/splitrx/internal/metrics"
)

// dispensingUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type dispensingUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps a dispensing UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &dispensingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (d *dispensingUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordOperation(ctx, "dispensing", operation, status)
	d.metrics.RecordDuration(ctx, "dispensing", operation, time.Since(start), status)
}

func (d *dispensingUseCaseWithMetrics) Verify(
	ctx context.Context,
	pharmacistID, prescriptionID uuid.UUID,
) (*domain.VerificationReport, error) {
	start := time.Now()
	report, err := d.next.Verify(ctx, pharmacistID, prescriptionID)
	d.record(ctx, "dispense_verify", start, err)
	return report, err
}

func (d *dispensingUseCaseWithMetrics) VerifyAndDispense(
	ctx context.Context,
	pharmacistID uuid.UUID,
	pharmacyName string,
	prescriptionID uuid.UUID,
) (*domain.DispensingRecord, error) {
	start := time.Now()
	record, err := d.next.VerifyAndDispense(ctx, pharmacistID, pharmacyName, prescriptionID)
	d.record(ctx, "dispense", start, err)
	return record, err
}

func (d *dispensingUseCaseWithMetrics) History(
	ctx context.Context,
	pharmacistID uuid.UUID,
) ([]*domain.HistoryEntry, error) {
	start := time.Now()
	records, err := d.next.History(ctx, pharmacistID)
	d.record(ctx, "dispense_history", start, err)
	return records, err
}
