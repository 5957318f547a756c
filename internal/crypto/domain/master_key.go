package domain

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// MinMasterSecretLength is the minimum accepted length for the operator-supplied
// master secret. Shorter secrets fail derivation instead of silently weakening
// the key.
const MinMasterSecretLength = 32

// MasterKey is the server-side symmetric key that encrypts prescription
// payloads and user private keys at rest.
//
// The key is derived from an operator-supplied secret and salt with scrypt, a
// deliberately slow key-derivation function. This is the one place in the
// system where password-like material becomes a key; an external KMS or HSM is
// explicitly out of scope.
//
// Fields:
//   - Key: The raw 32-byte key material
type MasterKey struct {
	Key []byte
}

// scrypt cost parameters. N must be a power of two.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// DeriveMasterKey derives the 32-byte master key from the configured secret
// and salt.
//
// Fails fast when the secret or salt is missing, or the secret is shorter than
// MinMasterSecretLength. Callers run this once at startup; there is no
// fallback key generation on any error path.
func DeriveMasterKey(secret, salt string) (*MasterKey, error) {
	if secret == "" {
		return nil, ErrMasterSecretNotSet
	}
	if salt == "" {
		return nil, ErrMasterSecretSaltNotSet
	}
	if len(secret) < MinMasterSecretLength {
		return nil, fmt.Errorf(
			"%w: need at least %d characters, got %d",
			ErrMasterSecretTooShort,
			MinMasterSecretLength,
			len(secret),
		)
	}

	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}

	return &MasterKey{Key: key}, nil
}

// Close clears the key material from memory. Call during application shutdown.
func (m *MasterKey) Close() {
	Zero(m.Key)
	m.Key = nil
}
