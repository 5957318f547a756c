// Package domain defines the user entity and its role model.
package domain

import (
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	"github.com/splitrx/splitrx/internal/errors"
)

// Role is a user's role in the prescription flow. The set is closed.
type Role string

const (
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RolePatient, RolePharmacist, RoleAdmin:
		return true
	}
	return false
}

// RequiresLicense reports whether the role must carry a license number.
func (r Role) RequiresLicense() bool {
	return r == RoleDoctor || r == RolePharmacist
}

// AuditRole maps the user role onto the ledger's actor role set.
func (r Role) AuditRole() auditDomain.ActorRole {
	return auditDomain.ActorRole(r)
}

// Key rotation reason tags. Rotation is never silent: every rotation writes a
// ledger entry carrying one of these reasons.
const (
	RotationReasonScheduled    = "rotation"
	RotationReasonLossRecovery = "loss_recovery"
)

// User represents an account holder. Every user owns an RSA key pair generated
// at registration: the public key is stored in the clear, the private key only
// ever at rest encrypted under the master key.
type User struct {
	ID                  uuid.UUID
	Email               string
	PasswordHash        string
	FullName            string
	Role                Role
	LicenseNumber       *string
	PublicKeyPEM        string
	EncryptedPrivateKey cryptoDomain.EncryptedBlob
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same email already exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrStateConflict, "user already exists")

	// ErrUserInactive indicates the account has been deactivated.
	ErrUserInactive = errors.Wrap(errors.ErrUnauthorized, "user is inactive")

	// ErrInvalidCredentials covers both unknown email and wrong password, so
	// authentication failures do not reveal which one it was.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")

	// ErrInvalidRole indicates the role is outside the closed set.
	ErrInvalidRole = errors.Wrap(errors.ErrInvalidInput, "invalid role")

	// ErrLicenseRequired indicates a doctor or pharmacist registration is
	// missing its license number.
	ErrLicenseRequired = errors.Wrap(errors.ErrInvalidInput, "license number is required for this role")

	// ErrInvalidRotationReason indicates a key rotation with an unknown reason tag.
	ErrInvalidRotationReason = errors.Wrap(errors.ErrInvalidInput, "invalid key rotation reason")
)
