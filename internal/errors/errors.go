// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the requester's role or ownership does not
	// allow the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStateConflict indicates the resource is not in the state the
	// operation requires (e.g., dispensing a non-active prescription).
	ErrStateConflict = errors.New("state conflict")

	// ErrTamperDetected indicates a signature or payload integrity check
	// failed. Always audit-logged with an explicit alert flag before being
	// returned.
	ErrTamperDetected = errors.New("tamper detected")

	// ErrDecryptionFailed indicates an authenticated-encryption tag did not
	// verify. Treated with the same severity as tamper detection.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrLedgerWrite indicates an audit ledger append failed. Only fatal when
	// the append is bound into the same transaction as a security-critical
	// mutation; otherwise logged and swallowed by the caller.
	ErrLedgerWrite = errors.New("ledger write failed")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
