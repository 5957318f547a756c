package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
	"github.com/splitrx/splitrx/internal/consent/domain"
	"github.com/splitrx/splitrx/internal/database"
	userDomain "github.com/splitrx/splitrx/internal/user/domain"
	userUsecase "github.com/splitrx/splitrx/internal/user/usecase"
)

// ConsentUseCase handles consent business logic.
type ConsentUseCase struct {
	txManager     database.TxManager
	consentRepo   ConsentRepository
	prescriptions PrescriptionCanceller
	userRepo      UserDeactivator
	users         userUsecase.UseCase
	ledger        auditUsecase.LedgerUseCase
}

// NewConsentUseCase creates a new ConsentUseCase.
func NewConsentUseCase(
	txManager database.TxManager,
	consentRepo ConsentRepository,
	prescriptions PrescriptionCanceller,
	userRepo UserDeactivator,
	users userUsecase.UseCase,
	ledger auditUsecase.LedgerUseCase,
) UseCase {
	return &ConsentUseCase{
		txManager:     txManager,
		consentRepo:   consentRepo,
		prescriptions: prescriptions,
		userRepo:      userRepo,
		users:         users,
		ledger:        ledger,
	}
}

func (uc *ConsentUseCase) requirePatient(ctx context.Context, patientID uuid.UUID) (*userDomain.User, error) {
	patient, err := uc.users.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != userDomain.RolePatient {
		return nil, domain.ErrNotPatient
	}
	if !patient.IsActive {
		return nil, userDomain.ErrUserInactive
	}
	return patient, nil
}

// Grant records a consent grant from the patient to a clinician.
func (uc *ConsentUseCase) Grant(
	ctx context.Context,
	patientID, grantedTo uuid.UUID,
	scope string,
) (*domain.ConsentRecord, error) {
	if patientID == grantedTo {
		return nil, domain.ErrSelfConsent
	}
	if _, err := uc.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	grantee, err := uc.users.GetByID(ctx, grantedTo)
	if err != nil {
		return nil, err
	}
	if !grantee.Role.RequiresLicense() {
		return nil, domain.ErrInvalidGrantee
	}

	active, err := uc.consentRepo.HasActiveConsent(ctx, patientID, grantedTo)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrConsentAlreadyGranted
	}

	if scope == "" {
		scope = domain.ScopePrescriptionsRead
	}

	record := &domain.ConsentRecord{
		ID:        uuid.Must(uuid.NewV7()),
		PatientID: patientID,
		GrantedTo: grantedTo,
		Scope:     scope,
		GrantedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.consentRepo.Create(ctx, record); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &patientID,
			ActorRole:       auditDomain.RolePatient,
			Action:          auditDomain.ActionConsentGranted,
			ResourceType:    "consent",
			ResourceID:      &record.ID,
			ResourceOwnerID: &patientID,
			Metadata: map[string]any{
				"granted_to": grantedTo.String(),
				"scope":      scope,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Revoke withdraws the patient's grant.
func (uc *ConsentUseCase) Revoke(ctx context.Context, patientID, consentID uuid.UUID) error {
	if _, err := uc.requirePatient(ctx, patientID); err != nil {
		return err
	}

	record, err := uc.consentRepo.GetByID(ctx, consentID)
	if err != nil {
		return err
	}
	if record.PatientID != patientID {
		return domain.ErrNotPatient
	}
	if !record.Active() {
		return domain.ErrConsentAlreadyRevoked
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.consentRepo.Revoke(ctx, record.ID); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &patientID,
			ActorRole:       auditDomain.RolePatient,
			Action:          auditDomain.ActionConsentRevoked,
			ResourceType:    "consent",
			ResourceID:      &record.ID,
			ResourceOwnerID: &patientID,
			Metadata:        map[string]any{"granted_to": record.GrantedTo.String()},
		})
		return err
	})
}

// ListForPatient returns the patient's consent records for an authorized actor.
func (uc *ConsentUseCase) ListForPatient(
	ctx context.Context,
	actorID, patientID uuid.UUID,
) ([]*domain.ConsentRecord, error) {
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != userDomain.RoleAdmin && actorID != patientID {
		return nil, domain.ErrNotPatient
	}

	return uc.consentRepo.ListForPatient(ctx, patientID)
}

// RequestDataErasure winds down the patient's account: active prescriptions
// cancelled, grants revoked, account deactivated, all committed together with
// the ledger entry.
func (uc *ConsentUseCase) RequestDataErasure(ctx context.Context, patientID uuid.UUID) error {
	if _, err := uc.requirePatient(ctx, patientID); err != nil {
		return err
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		cancelled, err := uc.prescriptions.CancelAllActiveForPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if err := uc.consentRepo.RevokeAllForPatient(ctx, patientID); err != nil {
			return err
		}
		if err := uc.userRepo.SetActive(ctx, patientID, false); err != nil {
			return err
		}

		_, err = uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &patientID,
			ActorRole:       auditDomain.RolePatient,
			Action:          auditDomain.ActionDataDeletionRequested,
			ResourceType:    "user",
			ResourceID:      &patientID,
			ResourceOwnerID: &patientID,
			Metadata:        map[string]any{"cancelled_prescriptions": len(cancelled)},
		})
		return err
	})
}
