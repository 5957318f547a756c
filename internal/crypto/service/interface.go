// Package service provides the cryptographic primitives the prescription
// lifecycle and dispensing flows are built on: authenticated symmetric
// encryption, asymmetric sign/verify, and one-way hashing.
package service

import (
	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
)

// Cipher provides authenticated symmetric encryption. Implementations must
// fail closed: any ciphertext, IV, or tag tampering is reported as an error
// and never surfaces corrupted plaintext.
type Cipher interface {
	Encrypt(plaintext []byte) (cryptoDomain.EncryptedBlob, error)
	Decrypt(blob cryptoDomain.EncryptedBlob) ([]byte, error)
}

// Signer provides asymmetric signing for non-repudiation of prescription
// payloads. Verify never propagates format or crypto errors; verification
// failure is a normal outcome and returns false.
type Signer interface {
	GenerateKeyPair() (cryptoDomain.KeyPair, error)
	Sign(data []byte, privateKeyPEM string) (string, error)
	Verify(data []byte, signatureHex string, publicKeyPEM string) bool
}
