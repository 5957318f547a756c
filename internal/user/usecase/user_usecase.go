// Package usecase implements user registration, authentication, and key
// management on top of the user repository and the audit ledger.
package usecase

import (
	"context"
	"log/slog"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/allisson/go-pwdhash"
	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	cryptoService "github.com/splitrx/splitrx/internal/crypto/service"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	"github.com/splitrx/splitrx/internal/user/domain"
	appValidation "github.com/splitrx/splitrx/internal/validation"
)

// RegisterInput contains the input data for user registration.
type RegisterInput struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	LicenseNumber string `json:"license_number"`
}

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateKeys(ctx context.Context, id uuid.UUID, publicKeyPEM string, encryptedPrivateKey cryptoDomain.EncryptedBlob) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// UseCase defines the interface for user business logic operations.
type UseCase interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// RotateKeys replaces the user's key pair and records the rotation in the
	// ledger with its reason tag. Prescriptions signed with the old key keep
	// verifying against the public key captured at issue time.
	RotateKeys(ctx context.Context, userID uuid.UUID, reason string) (*domain.User, error)
	// WithSigningKey decrypts the user's private key, passes it to fn, and
	// zeroes it afterwards. The key never escapes the callback.
	WithSigningKey(ctx context.Context, userID uuid.UUID, fn func(privateKeyPEM []byte) error) error
	Reactivate(ctx context.Context, adminID, userID uuid.UUID) error
}

// UserUseCase handles user-related business logic.
type UserUseCase struct {
	txManager      database.TxManager
	userRepo       UserRepository
	ledger         auditUsecase.LedgerUseCase
	cipher         cryptoService.Cipher
	signer         cryptoService.Signer
	passwordHasher *pwdhash.PasswordHasher
	logger         *slog.Logger
}

// NewUserUseCase creates a new UserUseCase.
func NewUserUseCase(
	txManager database.TxManager,
	userRepo UserRepository,
	ledger auditUsecase.LedgerUseCase,
	cipher cryptoService.Cipher,
	signer cryptoService.Signer,
	logger *slog.Logger,
) (UseCase, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}

	return &UserUseCase{
		txManager:      txManager,
		userRepo:       userRepo,
		ledger:         ledger,
		cipher:         cipher,
		signer:         signer,
		passwordHasher: hasher,
		logger:         logger,
	}, nil
}

// validateRegisterInput validates the registration input.
func (uc *UserUseCase) validateRegisterInput(input RegisterInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Email,
			validation.Required.Error("email is required"),
			appValidation.NotBlank,
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
		validation.Field(&input.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be between 8 and 128 characters"),
			appValidation.PasswordStrength{
				MinLength:      8,
				RequireUpper:   true,
				RequireLower:   true,
				RequireNumber:  true,
				RequireSpecial: true,
			},
		),
		validation.Field(&input.FullName,
			validation.Required.Error("full name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("full name must be between 1 and 255 characters"),
		),
	)
	if err != nil {
		return appValidation.WrapValidationError(err)
	}

	role := domain.Role(input.Role)
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	if role.RequiresLicense() && strings.TrimSpace(input.LicenseNumber) == "" {
		return domain.ErrLicenseRequired
	}

	return nil
}

// Register creates a new user with a freshly generated key pair. The user row
// and its USER_REGISTERED ledger entry commit in the same transaction: a user
// without an activation entry would break the per-user log floor.
func (uc *UserUseCase) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := uc.validateRegisterInput(input); err != nil {
		return nil, err
	}

	passwordHash, err := uc.passwordHasher.Hash([]byte(input.Password))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	keyPair, err := uc.signer.GenerateKeyPair()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate key pair")
	}

	encryptedPrivateKey, err := uc.cipher.Encrypt([]byte(keyPair.PrivateKeyPEM))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt private key")
	}

	role := domain.Role(input.Role)
	user := &domain.User{
		ID:                  uuid.Must(uuid.NewV7()),
		Email:               strings.TrimSpace(strings.ToLower(input.Email)),
		PasswordHash:        passwordHash,
		FullName:            strings.TrimSpace(input.FullName),
		Role:                role,
		PublicKeyPEM:        keyPair.PublicKeyPEM,
		EncryptedPrivateKey: encryptedPrivateKey,
		IsActive:            true,
	}
	if license := strings.TrimSpace(input.LicenseNumber); license != "" {
		user.LicenseNumber = &license
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.userRepo.Create(ctx, user); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &user.ID,
			ActorRole:       role.AuditRole(),
			Action:          auditDomain.ActionUserRegistered,
			ResourceType:    "user",
			ResourceID:      &user.ID,
			ResourceOwnerID: &user.ID,
			Metadata:        map[string]any{"role": string(role)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies the credentials and records the login in the ledger.
// Unknown email and wrong password are indistinguishable to the caller.
func (uc *UserUseCase) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := uc.passwordHasher.Verify([]byte(password), user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// Login is worth recording but not worth failing over.
	if _, err := uc.ledger.Append(ctx, &auditDomain.Event{
		ActorID:         &user.ID,
		ActorRole:       user.Role.AuditRole(),
		Action:          auditDomain.ActionUserLogin,
		ResourceType:    "user",
		ResourceID:      &user.ID,
		ResourceOwnerID: &user.ID,
	}); err != nil {
		uc.logger.Warn("failed to record login in audit ledger", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (uc *UserUseCase) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

// RotateKeys replaces the user's key pair.
func (uc *UserUseCase) RotateKeys(
	ctx context.Context,
	userID uuid.UUID,
	reason string,
) (*domain.User, error) {
	if reason != domain.RotationReasonScheduled && reason != domain.RotationReasonLossRecovery {
		return nil, domain.ErrInvalidRotationReason
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	keyPair, err := uc.signer.GenerateKeyPair()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate key pair")
	}

	encryptedPrivateKey, err := uc.cipher.Encrypt([]byte(keyPair.PrivateKeyPEM))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt private key")
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.userRepo.UpdateKeys(ctx, userID, keyPair.PublicKeyPEM, encryptedPrivateKey); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &userID,
			ActorRole:       user.Role.AuditRole(),
			Action:          auditDomain.ActionKeyRotation,
			ResourceType:    "user",
			ResourceID:      &userID,
			ResourceOwnerID: &userID,
			Metadata:        map[string]any{"reason": reason},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	user.PublicKeyPEM = keyPair.PublicKeyPEM
	user.EncryptedPrivateKey = encryptedPrivateKey
	return user, nil
}

// WithSigningKey runs fn with the user's decrypted private key.
func (uc *UserUseCase) WithSigningKey(
	ctx context.Context,
	userID uuid.UUID,
	fn func(privateKeyPEM []byte) error,
) error {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return domain.ErrUserInactive
	}

	privateKeyPEM, err := uc.cipher.Decrypt(user.EncryptedPrivateKey)
	if err != nil {
		return apperrors.Wrap(err, "failed to decrypt private key")
	}
	defer cryptoDomain.Zero(privateKeyPEM)

	return fn(privateKeyPEM)
}

// Reactivate re-enables a deactivated account. The USER_REACTIVATED entry
// resets the user's visible log floor.
func (uc *UserUseCase) Reactivate(ctx context.Context, adminID, userID uuid.UUID) error {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsActive {
		return apperrors.Wrap(apperrors.ErrStateConflict, "user is already active")
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.userRepo.SetActive(ctx, userID, true); err != nil {
			return err
		}

		_, err := uc.ledger.AppendInTx(ctx, &auditDomain.Event{
			ActorID:         &adminID,
			ActorRole:       auditDomain.RoleAdmin,
			Action:          auditDomain.ActionUserReactivated,
			ResourceType:    "user",
			ResourceID:      &userID,
			ResourceOwnerID: &userID,
		})
		return err
	})
}
