// Package domain defines the prescription entity, its payload, and the
// status machine that governs dispensing.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	"github.com/splitrx/splitrx/internal/errors"
)

// Status is a prescription's lifecycle state. Active is the only state a
// prescription can leave; the other three are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusDispensed Status = "dispensed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status is one of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDispensed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Medication is a single prescribed item.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Payload is the clinical content of a prescription. It is stored only in
// encrypted form; the hash and signature cover its canonical encoding.
type Payload struct {
	Medications []Medication `json:"medications"`
	Notes       string       `json:"notes"`
}

// CanonicalBytes returns the deterministic JSON encoding of the payload.
// Struct field order fixes the key order, so the same payload always encodes
// to the same bytes and the same hash.
func (p *Payload) CanonicalBytes() ([]byte, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return encoded, nil
}

// Hash returns the hex SHA-256 digest of the canonical payload encoding.
func (p *Payload) Hash() (string, error) {
	encoded, err := p.CanonicalBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Prescription is the persisted prescription. The clinical payload lives only
// in EncryptedPayload; PayloadHash and Signature bind the plaintext to the
// issuing doctor without revealing it.
type Prescription struct {
	ID                 uuid.UUID
	PrescriptionNumber string
	DoctorID           uuid.UUID
	PatientID          uuid.UUID
	EncryptedPayload   cryptoDomain.EncryptedBlob
	PayloadHash        string
	Signature          string
	Status             Status
	IssuedAt           time.Time
	ExpiresAt          time.Time
	DispensedAt        *time.Time
	DispensedBy        *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// DoctorPublicKeyPEM is the issuing doctor's current public key, joined in
	// by read queries. Not a column on the prescriptions table.
	DoctorPublicKeyPEM string
}

// ExpiredAt reports whether the prescription's validity window has passed.
func (p *Prescription) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// NewPrescriptionNumber builds a human-readable prescription number:
// RX-<base36 unix millis>-<4 chars of a random UUID>.
func NewPrescriptionNumber(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("RX-%s-%s", stamp, suffix)
}

// Domain-specific errors for prescription operations.
var (
	// ErrPrescriptionNotFound indicates the requested prescription does not exist.
	ErrPrescriptionNotFound = errors.Wrap(errors.ErrNotFound, "prescription not found")

	// ErrPrescriptionNotActive indicates an operation that requires the active
	// state found the prescription in a terminal one.
	ErrPrescriptionNotActive = errors.Wrap(errors.ErrStateConflict, "prescription is not active")

	// ErrPrescriptionExpired indicates the validity window has passed.
	ErrPrescriptionExpired = errors.Wrap(errors.ErrStateConflict, "prescription has expired")

	// ErrSignatureInvalid indicates the doctor's signature did not verify.
	ErrSignatureInvalid = errors.Wrap(errors.ErrTamperDetected, "prescription signature verification failed")

	// ErrIntegrityCheckFailed indicates the decrypted payload does not hash to
	// the stored payload hash.
	ErrIntegrityCheckFailed = errors.Wrap(errors.ErrTamperDetected, "prescription integrity check failed")

	// ErrNoMedications indicates an empty prescription.
	ErrNoMedications = errors.Wrap(errors.ErrInvalidInput, "prescription must contain at least one medication")

	// ErrExpiryOutOfRange indicates an expiry outside the allowed window.
	ErrExpiryOutOfRange = errors.Wrap(errors.ErrInvalidInput, "expiry is out of the allowed range")

	// ErrNotAuthorizedForPrescription indicates the actor has no relationship
	// with the prescription that permits the operation.
	ErrNotAuthorizedForPrescription = errors.Wrap(errors.ErrUnauthorized, "not authorized for this prescription")
)
