package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/metrics"
	"github.com/splitrx/splitrx/internal/prescription/domain"
)

// prescriptionUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type prescriptionUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUseCaseWithMetrics wraps a prescription UseCase with metrics recording.
func NewUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &prescriptionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (p *prescriptionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordOperation(ctx, "prescriptions", operation, status)
	p.metrics.RecordDuration(ctx, "prescriptions", operation, time.Since(start), status)
}

func (p *prescriptionUseCaseWithMetrics) Create(
	ctx context.Context,
	doctorID uuid.UUID,
	input CreateInput,
) (*domain.Prescription, error) {
	start := time.Now()
	prescription, err := p.next.Create(ctx, doctorID, input)
	p.record(ctx, "prescription_create", start, err)
	return prescription, err
}

func (p *prescriptionUseCaseWithMetrics) Get(
	ctx context.Context,
	actorID, prescriptionID uuid.UUID,
) (*domain.Prescription, *domain.Payload, error) {
	start := time.Now()
	prescription, payload, err := p.next.Get(ctx, actorID, prescriptionID)
	p.record(ctx, "prescription_get", start, err)
	return prescription, payload, err
}

func (p *prescriptionUseCaseWithMetrics) ListForPatient(
	ctx context.Context,
	actorID, patientID uuid.UUID,
) ([]*DecryptedPrescription, error) {
	start := time.Now()
	prescriptions, err := p.next.ListForPatient(ctx, actorID, patientID)
	p.record(ctx, "prescription_list_patient", start, err)
	return prescriptions, err
}

func (p *prescriptionUseCaseWithMetrics) ListForDoctor(
	ctx context.Context,
	doctorID uuid.UUID,
) ([]*domain.Prescription, error) {
	start := time.Now()
	prescriptions, err := p.next.ListForDoctor(ctx, doctorID)
	p.record(ctx, "prescription_list_doctor", start, err)
	return prescriptions, err
}

func (p *prescriptionUseCaseWithMetrics) GenerateQR(
	ctx context.Context,
	actorID, prescriptionID uuid.UUID,
) ([]byte, error) {
	start := time.Now()
	png, err := p.next.GenerateQR(ctx, actorID, prescriptionID)
	p.record(ctx, "prescription_qr", start, err)
	return png, err
}
