package domain

import "errors"

// Master key derivation errors. All of these abort startup: the service must
// never fall back to a generated throwaway key.
var (
	// ErrMasterSecretNotSet indicates MASTER_SECRET is not configured.
	ErrMasterSecretNotSet = errors.New("master secret is not set")

	// ErrMasterSecretSaltNotSet indicates MASTER_SECRET_SALT is not configured.
	ErrMasterSecretSaltNotSet = errors.New("master secret salt is not set")

	// ErrMasterSecretTooShort indicates MASTER_SECRET is below the minimum length.
	ErrMasterSecretTooShort = errors.New("master secret is too short")
)
