package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

// AESGCMCipher implements the Cipher interface using AES-256-GCM
// (Advanced Encryption Standard with Galois/Counter Mode).
//
// AES-GCM provides authenticated encryption: the confidentiality of AES
// combined with an authentication tag that detects any tampering with the
// ciphertext, IV, or tag itself. The ciphertext, IV, and tag are kept as
// separate hex fields so they can be stored in distinct database columns.
//
// Security properties:
//   - 256-bit key (the derived master key)
//   - 12-byte IV, randomly generated per encryption, never reused
//   - 16-byte authentication tag, verified before any plaintext is returned
//
// Thread safety:
//
//	The cipher instance is stateless and safe for concurrent use from
//	multiple goroutines. Each encryption generates a fresh IV independently.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance.
//
// The key must be exactly 32 bytes (256 bits). The caller retains ownership of
// the key slice; the cipher keeps its own expanded key schedule.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != 32 {
		return nil, errors.New("key must be exactly 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns the ciphertext, IV, and
// authentication tag as separate hex strings.
//
// A unique 12-byte IV is generated with crypto/rand for every call. The GCM
// tag is split off the sealed output so the three parts can be persisted
// independently, matching the prescription storage shape.
func (a *AESGCMCipher) Encrypt(plaintext []byte) (cryptoDomain.EncryptedBlob, error) {
	iv := make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return cryptoDomain.EncryptedBlob{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := a.aead.Seal(nil, iv, plaintext, nil)

	// Seal appends the 16-byte tag to the ciphertext
	tagOffset := len(sealed) - a.aead.Overhead()

	return cryptoDomain.EncryptedBlob{
		Ciphertext: hex.EncodeToString(sealed[:tagOffset]),
		IV:         hex.EncodeToString(iv),
		Tag:        hex.EncodeToString(sealed[tagOffset:]),
	}, nil
}

// Decrypt authenticates and decrypts a blob produced by Encrypt.
//
// Fails closed with ErrDecryptionFailed when the tag does not verify or any
// part of the blob is malformed; corrupted plaintext is never returned.
func (a *AESGCMCipher) Decrypt(blob cryptoDomain.EncryptedBlob) ([]byte, error) {
	ciphertext, err := hex.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryptionFailed, "malformed ciphertext")
	}

	iv, err := hex.DecodeString(blob.IV)
	if err != nil || len(iv) != a.aead.NonceSize() {
		return nil, apperrors.Wrap(apperrors.ErrDecryptionFailed, "malformed iv")
	}

	tag, err := hex.DecodeString(blob.Tag)
	if err != nil || len(tag) != a.aead.Overhead() {
		return nil, apperrors.Wrap(apperrors.ErrDecryptionFailed, "malformed tag")
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := a.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecryptionFailed, "authentication failed")
	}

	return plaintext, nil
}
