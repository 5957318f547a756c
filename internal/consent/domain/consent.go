// Package domain defines patient consent grants.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/errors"
)

// ScopePrescriptionsRead lets the grantee list the patient's prescriptions.
const ScopePrescriptionsRead = "prescriptions.read"

// ConsentRecord is a patient's grant of access to another user. Records are
// never deleted; revocation sets RevokedAt.
type ConsentRecord struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	GrantedTo uuid.UUID
	Scope     string
	GrantedAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the grant is still in force.
func (c *ConsentRecord) Active() bool {
	return c.RevokedAt == nil
}

// Domain-specific errors for consent operations.
var (
	// ErrConsentNotFound indicates the consent record does not exist.
	ErrConsentNotFound = errors.Wrap(errors.ErrNotFound, "consent record not found")

	// ErrConsentAlreadyGranted indicates an active grant to the same user already exists.
	ErrConsentAlreadyGranted = errors.Wrap(errors.ErrStateConflict, "consent already granted")

	// ErrConsentAlreadyRevoked indicates the grant was revoked earlier.
	ErrConsentAlreadyRevoked = errors.Wrap(errors.ErrStateConflict, "consent already revoked")

	// ErrNotPatient indicates the actor cannot manage consent grants.
	ErrNotPatient = errors.Wrap(errors.ErrUnauthorized, "only patients can manage consent")

	// ErrSelfConsent indicates a patient granting consent to themselves.
	ErrSelfConsent = errors.Wrap(errors.ErrInvalidInput, "cannot grant consent to yourself")

	// ErrInvalidGrantee indicates the grantee cannot receive clinical access.
	ErrInvalidGrantee = errors.Wrap(errors.ErrInvalidInput, "consent can only be granted to doctors or pharmacists")
)
