package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
	cryptoService "github.com/splitrx/splitrx/internal/crypto/service"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	"github.com/splitrx/splitrx/internal/prescription/domain"
	userDomain "github.com/splitrx/splitrx/internal/user/domain"
	userUsecase "github.com/splitrx/splitrx/internal/user/usecase"
	appValidation "github.com/splitrx/splitrx/internal/validation"
)

const qrImageSize = 256

// qrReference is the QR code content: enough for a verifier to look the
// prescription up, check its payload hash, and tie it to both participants.
// Nothing clinical.
type qrReference struct {
	PrescriptionID     uuid.UUID `json:"prescription_id"`
	PrescriptionNumber string    `json:"prescription_number"`
	PayloadHash        string    `json:"payload_hash"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	GeneratedAt        int64     `json:"generated_at"`
}

// PrescriptionUseCase handles prescription business logic.
type PrescriptionUseCase struct {
	txManager        database.TxManager
	prescriptionRepo PrescriptionRepository
	consentChecker   ConsentChecker
	users            userUsecase.UseCase
	ledger           auditUsecase.LedgerUseCase
	cipher           cryptoService.Cipher
	signer           cryptoService.Signer
	maxExpiryDays    int
	logger           *slog.Logger
}

// NewPrescriptionUseCase creates a new PrescriptionUseCase.
func NewPrescriptionUseCase(
	txManager database.TxManager,
	prescriptionRepo PrescriptionRepository,
	consentChecker ConsentChecker,
	users userUsecase.UseCase,
	ledger auditUsecase.LedgerUseCase,
	cipher cryptoService.Cipher,
	signer cryptoService.Signer,
	maxExpiryDays int,
	logger *slog.Logger,
) UseCase {
	return &PrescriptionUseCase{
		txManager:        txManager,
		prescriptionRepo: prescriptionRepo,
		consentChecker:   consentChecker,
		users:            users,
		ledger:           ledger,
		cipher:           cipher,
		signer:           signer,
		maxExpiryDays:    maxExpiryDays,
		logger:           logger,
	}
}

// validateCreateInput validates the issue request.
func (uc *PrescriptionUseCase) validateCreateInput(input CreateInput) error {
	if len(input.Medications) == 0 {
		return domain.ErrNoMedications
	}
	if input.ExpiresInDays < 1 || input.ExpiresInDays > uc.maxExpiryDays {
		return domain.ErrExpiryOutOfRange
	}

	for i := range input.Medications {
		med := input.Medications[i]
		err := validation.ValidateStruct(&med,
			validation.Field(&med.Name,
				validation.Required.Error("medication name is required"),
				appValidation.NotBlank,
				validation.Length(1, 255).Error("medication name must be between 1 and 255 characters"),
			),
			validation.Field(&med.Dosage,
				validation.Required.Error("dosage is required"),
				appValidation.NotBlank,
			),
			validation.Field(&med.Frequency,
				validation.Required.Error("frequency is required"),
				appValidation.NotBlank,
			),
		)
		if err != nil {
			return appValidation.WrapValidationError(err)
		}
	}

	return nil
}

// Create issues a prescription.
func (uc *PrescriptionUseCase) Create(
	ctx context.Context,
	doctorID uuid.UUID,
	input CreateInput,
) (*domain.Prescription, error) {
	if err := uc.validateCreateInput(input); err != nil {
		return nil, err
	}

	doctor, err := uc.users.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != userDomain.RoleDoctor {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "only doctors can issue prescriptions")
	}
	if !doctor.IsActive {
		return nil, userDomain.ErrUserInactive
	}

	patient, err := uc.users.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != userDomain.RolePatient {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "prescriptions can only be issued to patients")
	}
	if !patient.IsActive {
		return nil, userDomain.ErrUserInactive
	}

	payload := &domain.Payload{
		Medications: input.Medications,
		Notes:       input.Notes,
	}

	canonical, err := payload.CanonicalBytes()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode payload")
	}
	payloadHash, err := payload.Hash()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash payload")
	}

	// Sign the payload hash, not the plaintext: verification at the pharmacy
	// can then check the signature before decrypting anything.
	var signature string
	err = uc.users.WithSigningKey(ctx, doctorID, func(privateKeyPEM []byte) error {
		var signErr error
		signature, signErr = uc.signer.Sign([]byte(payloadHash), string(privateKeyPEM))
		return signErr
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sign prescription")
	}

	encryptedPayload, err := uc.cipher.Encrypt(canonical)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt payload")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	prescription := &domain.Prescription{
		ID:                 uuid.Must(uuid.NewV7()),
		PrescriptionNumber: domain.NewPrescriptionNumber(now),
		DoctorID:           doctorID,
		PatientID:          input.PatientID,
		EncryptedPayload:   encryptedPayload,
		PayloadHash:        payloadHash,
		Signature:          signature,
		Status:             domain.StatusActive,
		IssuedAt:           now,
		ExpiresAt:          now.AddDate(0, 0, input.ExpiresInDays),
		DoctorPublicKeyPEM: doctor.PublicKeyPEM,
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.prescriptionRepo.Create(ctx, prescription); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &doctorID,
			ActorRole:       auditDomain.RoleDoctor,
			Action:          auditDomain.ActionPrescriptionCreated,
			ResourceType:    "prescription",
			ResourceID:      &prescription.ID,
			ResourceOwnerID: &prescription.PatientID,
			Metadata:        map[string]any{"prescription_number": prescription.PrescriptionNumber},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return prescription, nil
}

// Get returns a prescription with its decrypted payload.
func (uc *PrescriptionUseCase) Get(
	ctx context.Context,
	actorID, prescriptionID uuid.UUID,
) (*domain.Prescription, *domain.Payload, error) {
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}

	prescription, err := uc.prescriptionRepo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, nil, err
	}

	if !uc.canView(actor, prescription) {
		return nil, nil, domain.ErrNotAuthorizedForPrescription
	}

	uc.expireIfDue(ctx, actor, prescription)

	payload, err := uc.decryptPayload(prescription)
	if err != nil {
		return nil, nil, err
	}

	return prescription, payload, nil
}

// canView: the issuing doctor, the patient, and admins.
func (uc *PrescriptionUseCase) canView(actor *userDomain.User, prescription *domain.Prescription) bool {
	switch actor.Role {
	case userDomain.RoleAdmin:
		return true
	case userDomain.RoleDoctor:
		return actor.ID == prescription.DoctorID
	case userDomain.RolePatient:
		return actor.ID == prescription.PatientID
	}
	return false
}

// expireIfDue lazily moves an overdue active prescription to expired. The
// status flip and its ledger entry are best-effort on the read path; the
// dispensing path re-checks expiry under a row lock regardless.
func (uc *PrescriptionUseCase) expireIfDue(
	ctx context.Context,
	actor *userDomain.User,
	prescription *domain.Prescription,
) {
	if prescription.Status != domain.StatusActive || !prescription.ExpiredAt(time.Now().UTC()) {
		return
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.prescriptionRepo.UpdateStatus(ctx, prescription.ID, domain.StatusExpired); err != nil {
			return err
		}
		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &actor.ID,
			ActorRole:       auditDomain.RoleSystem,
			Action:          auditDomain.ActionPrescriptionExpired,
			ResourceType:    "prescription",
			ResourceID:      &prescription.ID,
			ResourceOwnerID: &prescription.PatientID,
		})
		return err
	})
	if err != nil {
		uc.logger.Warn("failed to expire prescription",
			"prescription_id", prescription.ID, "error", err)
		return
	}

	prescription.Status = domain.StatusExpired
}

func (uc *PrescriptionUseCase) decryptPayload(prescription *domain.Prescription) (*domain.Payload, error) {
	plaintext, err := uc.cipher.Decrypt(prescription.EncryptedPayload)
	if err != nil {
		return nil, err
	}

	var payload domain.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode payload")
	}
	return &payload, nil
}

// ListForPatient returns the patient's prescriptions, decrypted, for an
// authorized actor. A doctor only ever sees the prescriptions they authored
// themselves, and only with the patient's consent.
func (uc *PrescriptionUseCase) ListForPatient(
	ctx context.Context,
	actorID, patientID uuid.UUID,
) ([]*DecryptedPrescription, error) {
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var prescriptions []*domain.Prescription
	switch {
	case actor.Role == userDomain.RoleAdmin,
		actor.Role == userDomain.RolePatient && actor.ID == patientID:
		prescriptions, err = uc.prescriptionRepo.ListByPatient(ctx, patientID)
	case actor.Role == userDomain.RoleDoctor:
		allowed, consentErr := uc.consentChecker.HasActiveConsent(ctx, patientID, actorID)
		if consentErr != nil {
			return nil, consentErr
		}
		if !allowed {
			return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "patient has not granted consent")
		}
		prescriptions, err = uc.prescriptionRepo.ListByPatientAndDoctor(ctx, patientID, actorID)
	default:
		return nil, domain.ErrNotAuthorizedForPrescription
	}
	if err != nil {
		return nil, err
	}

	decrypted := make([]*DecryptedPrescription, 0, len(prescriptions))
	for _, prescription := range prescriptions {
		payload, err := uc.decryptPayload(prescription)
		if err != nil {
			// A record that no longer decrypts is a tampered record, not a
			// missing one.
			return nil, err
		}
		decrypted = append(decrypted, &DecryptedPrescription{
			Prescription: prescription,
			Payload:      payload,
		})
	}

	if _, err := uc.ledger.Append(ctx, &auditDomain.Event{
		ActorID:         &actorID,
		ActorRole:       actor.Role.AuditRole(),
		Action:          auditDomain.ActionPrescriptionsViewed,
		ResourceType:    "prescription_list",
		ResourceID:      &patientID,
		ResourceOwnerID: &patientID,
		Metadata:        map[string]any{"count": len(prescriptions)},
	}); err != nil {
		uc.logger.Warn("failed to record prescription list view", "patient_id", patientID, "error", err)
	}

	return decrypted, nil
}

// ListForDoctor returns the prescriptions the doctor issued.
func (uc *PrescriptionUseCase) ListForDoctor(
	ctx context.Context,
	doctorID uuid.UUID,
) ([]*domain.Prescription, error) {
	return uc.prescriptionRepo.ListByDoctor(ctx, doctorID)
}

// GenerateQR renders the prescription's verification reference as a PNG.
// Only the owning patient of a still-active prescription gets one.
func (uc *PrescriptionUseCase) GenerateQR(
	ctx context.Context,
	actorID, prescriptionID uuid.UUID,
) ([]byte, error) {
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	prescription, err := uc.prescriptionRepo.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}

	if actor.Role != userDomain.RolePatient || actor.ID != prescription.PatientID {
		return nil, domain.ErrNotAuthorizedForPrescription
	}

	uc.expireIfDue(ctx, actor, prescription)

	if prescription.Status != domain.StatusActive {
		return nil, domain.ErrPrescriptionNotActive
	}

	content, err := json.Marshal(qrReference{
		PrescriptionID:     prescription.ID,
		PrescriptionNumber: prescription.PrescriptionNumber,
		PayloadHash:        prescription.PayloadHash,
		DoctorID:           prescription.DoctorID,
		PatientID:          prescription.PatientID,
		GeneratedAt:        time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode QR reference")
	}

	png, err := qrcode.Encode(string(content), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to render QR code")
	}

	if _, err := uc.ledger.Append(ctx, &auditDomain.Event{
		ActorID:         &actorID,
		ActorRole:       actor.Role.AuditRole(),
		Action:          auditDomain.ActionQRGenerated,
		ResourceType:    "prescription",
		ResourceID:      &prescription.ID,
		ResourceOwnerID: &prescription.PatientID,
	}); err != nil {
		uc.logger.Warn("failed to record QR generation", "prescription_id", prescription.ID, "error", err)
	}

	return png, nil
}
