package service

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
)

// RSASigner implements the Signer interface with 2048-bit RSA keys and
// SHA-256 PKCS#1 v1.5 signatures.
//
// Keys are exchanged as PEM: SPKI for public keys (stored in cleartext so any
// party can verify) and PKCS#8 for private keys (stored only encrypted under
// the master key, decrypted transiently at signing time).
type RSASigner struct{}

// NewRSASigner creates a new RSA signer instance.
func NewRSASigner() *RSASigner {
	return &RSASigner{}
}

const rsaKeyBits = 2048

// GenerateKeyPair generates a fresh 2048-bit RSA key pair, PEM-encoded.
func (s *RSASigner) GenerateKeyPair() (cryptoDomain.KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return cryptoDomain.KeyPair{}, fmt.Errorf("failed to generate rsa key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return cryptoDomain.KeyPair{}, fmt.Errorf("failed to marshal private key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return cryptoDomain.KeyPair{}, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return cryptoDomain.KeyPair{
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})),
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: privateDER,
		})),
	}, nil
}

// Sign signs data with the PEM-encoded private key and returns the signature
// as a hex string.
func (s *RSASigner) Sign(data []byte, privateKeyPEM string) (string, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return "", errors.New("failed to decode private key pem")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return "", errors.New("private key is not rsa")
	}

	digest := sha256.Sum256(data)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	return hex.EncodeToString(signature), nil
}

// Verify reports whether signatureHex is a valid signature of data under the
// PEM-encoded public key.
//
// All format and crypto errors are suppressed and reported as false:
// verification failure is an expected outcome (tampering, wrong key) and must
// not crash the caller.
func (s *RSASigner) Verify(data []byte, signatureHex string, publicKeyPEM string) bool {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return false
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return false
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature) == nil
}
