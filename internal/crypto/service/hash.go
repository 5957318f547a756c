package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashHex returns the SHA-256 digest of data as a lowercase hex string.
// Used both for payload integrity digests and for the audit chain links.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
