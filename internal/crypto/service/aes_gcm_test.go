package service

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNewAESGCM(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		cipher, err := NewAESGCM(testKey())
		require.NoError(t, err)
		assert.NotNil(t, cipher)
	})

	t.Run("invalid key size", func(t *testing.T) {
		for _, size := range []int{0, 16, 24, 31, 33} {
			cipher, err := NewAESGCM(make([]byte, size))
			assert.Error(t, err)
			assert.Nil(t, cipher)
		}
	})
}

func TestAESGCMCipher_RoundTrip(t *testing.T) {
	cipher, err := NewAESGCM(testKey())
	require.NoError(t, err)

	plaintexts := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte(`{"medication_name":"Amoxicillin","dosage":"500mg"}`),
		make([]byte, 4096),
	}

	for _, plaintext := range plaintexts {
		blob, err := cipher.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := cipher.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestAESGCMCipher_FreshIVPerCall(t *testing.T) {
	cipher, err := NewAESGCM(testKey())
	require.NoError(t, err)

	plaintext := []byte("same plaintext")

	first, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)
	second, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestAESGCMCipher_TamperDetection(t *testing.T) {
	cipher, err := NewAESGCM(testKey())
	require.NoError(t, err)

	blob, err := cipher.Encrypt([]byte("tamper-evident payload"))
	require.NoError(t, err)

	flipBit := func(hexStr string) string {
		raw, err := hex.DecodeString(hexStr)
		require.NoError(t, err)
		raw[0] ^= 0x01
		return hex.EncodeToString(raw)
	}

	tests := []struct {
		name   string
		mutate func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob
	}{
		{
			name: "mutated ciphertext",
			mutate: func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob {
				b.Ciphertext = flipBit(b.Ciphertext)
				return b
			},
		},
		{
			name: "mutated iv",
			mutate: func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob {
				b.IV = flipBit(b.IV)
				return b
			},
		},
		{
			name: "mutated tag",
			mutate: func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob {
				b.Tag = flipBit(b.Tag)
				return b
			},
		},
		{
			name: "non-hex ciphertext",
			mutate: func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob {
				b.Ciphertext = "zz" + b.Ciphertext[2:]
				return b
			},
		},
		{
			name: "truncated tag",
			mutate: func(b cryptoDomain.EncryptedBlob) cryptoDomain.EncryptedBlob {
				b.Tag = b.Tag[:4]
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext, err := cipher.Decrypt(tt.mutate(blob))
			assert.Nil(t, plaintext)
			assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
		})
	}
}

func TestAESGCMCipher_WrongKey(t *testing.T) {
	cipher, err := NewAESGCM(testKey())
	require.NoError(t, err)

	otherKey := testKey()
	otherKey[0] ^= 0xff
	otherCipher, err := NewAESGCM(otherKey)
	require.NoError(t, err)

	blob, err := cipher.Encrypt([]byte("for the first key only"))
	require.NoError(t, err)

	plaintext, err := otherCipher.Decrypt(blob)
	assert.Nil(t, plaintext)
	assert.ErrorIs(t, err, apperrors.ErrDecryptionFailed)
}
