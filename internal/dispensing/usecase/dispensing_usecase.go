package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
	cryptoService "github.com/splitrx/splitrx/internal/crypto/service"
	"github.com/splitrx/splitrx/internal/database"
	"github.com/splitrx/splitrx/internal/dispensing/domain"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	prescriptionDomain "github.com/splitrx/splitrx/internal/prescription/domain"
	prescriptionUsecase "github.com/splitrx/splitrx/internal/prescription/usecase"
	userDomain "github.com/splitrx/splitrx/internal/user/domain"
	userUsecase "github.com/splitrx/splitrx/internal/user/usecase"
)

// tamperAlert marks rejection audits caused by a failed signature check so
// they stand out when the ledger is reviewed.
const tamperAlert = "POSSIBLE TAMPERING DETECTED"

// DispensingUseCase handles pharmacy verification and dispensing.
type DispensingUseCase struct {
	txManager        database.TxManager
	dispensingRepo   DispensingRepository
	prescriptionRepo prescriptionUsecase.PrescriptionRepository
	users            userUsecase.UseCase
	ledger           auditUsecase.LedgerUseCase
	cipher           cryptoService.Cipher
	signer           cryptoService.Signer
	logger           *slog.Logger
}

// NewDispensingUseCase creates a new DispensingUseCase.
func NewDispensingUseCase(
	txManager database.TxManager,
	dispensingRepo DispensingRepository,
	prescriptionRepo prescriptionUsecase.PrescriptionRepository,
	users userUsecase.UseCase,
	ledger auditUsecase.LedgerUseCase,
	cipher cryptoService.Cipher,
	signer cryptoService.Signer,
	logger *slog.Logger,
) UseCase {
	return &DispensingUseCase{
		txManager:        txManager,
		dispensingRepo:   dispensingRepo,
		prescriptionRepo: prescriptionRepo,
		users:            users,
		ledger:           ledger,
		cipher:           cipher,
		signer:           signer,
		logger:           logger,
	}
}

func (uc *DispensingUseCase) requirePharmacist(ctx context.Context, pharmacistID uuid.UUID) (*userDomain.User, error) {
	pharmacist, err := uc.users.GetByID(ctx, pharmacistID)
	if err != nil {
		return nil, err
	}
	if pharmacist.Role != userDomain.RolePharmacist {
		return nil, domain.ErrNotPharmacist
	}
	if !pharmacist.IsActive {
		return nil, userDomain.ErrUserInactive
	}
	return pharmacist, nil
}

// checkIntegrity decrypts the payload and compares its recomputed hash with
// the one the signature covers. Returns the payload only when both match.
func (uc *DispensingUseCase) checkIntegrity(
	prescription *prescriptionDomain.Prescription,
) (*prescriptionDomain.Payload, error) {
	plaintext, err := uc.cipher.Decrypt(prescription.EncryptedPayload)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(plaintext)
	if hex.EncodeToString(sum[:]) != prescription.PayloadHash {
		return nil, prescriptionDomain.ErrIntegrityCheckFailed
	}

	var payload prescriptionDomain.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode payload")
	}
	return &payload, nil
}

// Verify builds a read-only verification report for the pharmacist.
func (uc *DispensingUseCase) Verify(
	ctx context.Context,
	pharmacistID, prescriptionID uuid.UUID,
) (*domain.VerificationReport, error) {
	if _, err := uc.requirePharmacist(ctx, pharmacistID); err != nil {
		return nil, err
	}

	prescription, err := uc.prescriptionRepo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &domain.VerificationReport{
		PrescriptionID:     prescription.ID,
		PrescriptionNumber: prescription.PrescriptionNumber,
		Status:             prescription.Status,
		Expired:            prescription.Status == prescriptionDomain.StatusExpired || prescription.ExpiredAt(now),
		SignatureValid: uc.signer.Verify(
			[]byte(prescription.PayloadHash),
			prescription.Signature,
			prescription.DoctorPublicKeyPEM,
		),
	}

	payload, integrityErr := uc.checkIntegrity(prescription)
	if integrityErr == nil {
		report.IntegrityValid = true
		report.Payload = payload
	}

	report.Dispensable = prescription.Status == prescriptionDomain.StatusActive &&
		!report.Expired && report.SignatureValid && report.IntegrityValid

	uc.appendStandalone(ctx, &auditDomain.Event{
		ActorID:         &pharmacistID,
		ActorRole:       auditDomain.RolePharmacist,
		Action:          auditDomain.ActionPrescriptionVerified,
		ResourceType:    "prescription",
		ResourceID:      &prescription.ID,
		ResourceOwnerID: &prescription.PatientID,
		Metadata: map[string]any{
			"prescription_number": prescription.PrescriptionNumber,
			"dispensable":         report.Dispensable,
		},
	})

	if !report.SignatureValid {
		uc.appendFailureAlert(ctx, pharmacistID, prescription, auditDomain.ActionSignatureVerifyFailed)
	} else if !report.IntegrityValid {
		uc.appendFailureAlert(ctx, pharmacistID, prescription, auditDomain.ActionIntegrityCheckFailed)
	}

	return report, nil
}

// VerifyAndDispense settles the prescription. Every check runs again under
// FOR UPDATE: the read-only report may be stale by the time the pharmacist
// confirms.
func (uc *DispensingUseCase) VerifyAndDispense(
	ctx context.Context,
	pharmacistID uuid.UUID,
	pharmacyName string,
	prescriptionID uuid.UUID,
) (*domain.DispensingRecord, error) {
	if strings.TrimSpace(pharmacyName) == "" {
		return nil, domain.ErrPharmacyNameRequired
	}
	if _, err := uc.requirePharmacist(ctx, pharmacistID); err != nil {
		return nil, err
	}

	var (
		record       *domain.DispensingRecord
		rejection    *auditDomain.Event
		rejectionErr error
	)

	txErr := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		prescription, err := uc.prescriptionRepo.GetByIDForUpdate(ctx, prescriptionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(time.Microsecond)

		if prescription.Status != prescriptionDomain.StatusActive {
			rejection = uc.rejectionEvent(pharmacistID, prescription, auditDomain.ActionDispenseRejectedState,
				map[string]any{"status": string(prescription.Status)})
			rejectionErr = prescriptionDomain.ErrPrescriptionNotActive
			return rejectionErr
		}

		if prescription.ExpiredAt(now) {
			// The status flip has to survive the rejection, so this branch
			// commits instead of rolling back.
			if err := uc.prescriptionRepo.UpdateStatus(ctx, prescription.ID, prescriptionDomain.StatusExpired); err != nil {
				return err
			}
			_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
				ActorID:         &pharmacistID,
				ActorRole:       auditDomain.RoleSystem,
				Action:          auditDomain.ActionPrescriptionExpired,
				ResourceType:    "prescription",
				ResourceID:      &prescription.ID,
				ResourceOwnerID: &prescription.PatientID,
			})
			if err != nil {
				return err
			}
			rejection = uc.rejectionEvent(pharmacistID, prescription, auditDomain.ActionDispenseRejectedState,
				map[string]any{"status": string(prescriptionDomain.StatusExpired)})
			rejectionErr = prescriptionDomain.ErrPrescriptionExpired
			return nil
		}

		if !uc.signer.Verify([]byte(prescription.PayloadHash), prescription.Signature, prescription.DoctorPublicKeyPEM) {
			rejection = uc.rejectionEvent(pharmacistID, prescription, auditDomain.ActionSignatureVerifyFailed,
				map[string]any{"alert": tamperAlert})
			rejectionErr = prescriptionDomain.ErrSignatureInvalid
			return rejectionErr
		}

		if _, err := uc.checkIntegrity(prescription); err != nil {
			rejection = uc.rejectionEvent(pharmacistID, prescription, auditDomain.ActionIntegrityCheckFailed, nil)
			rejectionErr = err
			return err
		}

		if err := uc.prescriptionRepo.MarkDispensed(ctx, prescription.ID, pharmacistID, now); err != nil {
			return err
		}

		// Freshness marker: ties this exact dispense to its moment in time.
		verificationHash := cryptoService.HashHex(
			fmt.Appendf(nil, "%s-%s-%d", prescription.ID, pharmacistID, now.UnixMilli()))

		record = &domain.DispensingRecord{
			ID:               uuid.Must(uuid.NewV7()),
			PrescriptionID:   prescription.ID,
			PharmacistID:     pharmacistID,
			PharmacyName:     pharmacyName,
			SignatureValid:   true,
			IntegrityValid:   true,
			VerificationHash: verificationHash,
			DispensedAt:      now,
		}
		if err := uc.dispensingRepo.Create(ctx, record); err != nil {
			return err
		}

		_, err = uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &pharmacistID,
			ActorRole:       auditDomain.RolePharmacist,
			Action:          auditDomain.ActionPrescriptionDispensed,
			ResourceType:    "prescription",
			ResourceID:      &prescription.ID,
			ResourceOwnerID: &prescription.PatientID,
			Metadata: map[string]any{
				"prescription_number": prescription.PrescriptionNumber,
				"pharmacy_name":       pharmacyName,
				"dispensing_id":       record.ID.String(),
				"verification_hash":   verificationHash,
			},
		})
		return err
	})

	// Rejection audits land outside the dispensing transaction: the rollback
	// must not take the evidence with it.
	if rejection != nil {
		uc.appendStandalone(ctx, rejection)
	}
	if rejectionErr != nil {
		return nil, rejectionErr
	}
	if txErr != nil {
		return nil, txErr
	}

	return record, nil
}

// History returns the pharmacist's dispensing records.
func (uc *DispensingUseCase) History(
	ctx context.Context,
	pharmacistID uuid.UUID,
) ([]*domain.HistoryEntry, error) {
	if _, err := uc.requirePharmacist(ctx, pharmacistID); err != nil {
		return nil, err
	}
	return uc.dispensingRepo.ListByPharmacist(ctx, pharmacistID)
}

func (uc *DispensingUseCase) rejectionEvent(
	pharmacistID uuid.UUID,
	prescription *prescriptionDomain.Prescription,
	action string,
	metadata map[string]any,
) *auditDomain.Event {
	return &auditDomain.Event{
		ActorID:         &pharmacistID,
		ActorRole:       auditDomain.RolePharmacist,
		Action:          action,
		ResourceType:    "prescription",
		ResourceID:      &prescription.ID,
		ResourceOwnerID: &prescription.PatientID,
		Metadata:        metadata,
	}
}

func (uc *DispensingUseCase) appendFailureAlert(
	ctx context.Context,
	pharmacistID uuid.UUID,
	prescription *prescriptionDomain.Prescription,
	action string,
) {
	uc.appendStandalone(ctx, uc.rejectionEvent(pharmacistID, prescription, action,
		map[string]any{
			"prescription_number": prescription.PrescriptionNumber,
			"alert":               tamperAlert,
		}))
}

func (uc *DispensingUseCase) appendStandalone(ctx context.Context, event *auditDomain.Event) {
	if _, err := uc.ledger.Append(ctx, event); err != nil {
		uc.logger.Warn("failed to append audit event",
			"action", event.Action, "resource_id", event.ResourceID, "error", err)
	}
}
