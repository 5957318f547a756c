package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SentinelHash is the previous-hash value of the first ledger entry.
const SentinelHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AuditEntry is one immutable record in the hash-chained ledger. Entries are
// created once via append and never updated or deleted; the storage layer
// enforces this with triggers, not just application code.
//
// Chain invariant: for entries ordered by insertion,
// entry[i].PreviousHash == entry[i-1].EntryHash (SentinelHash for i=0) and
// entry[i].EntryHash == sha256 over the entry's canonical payload.
type AuditEntry struct {
	ID              uuid.UUID
	Timestamp       time.Time
	ActorID         *uuid.UUID // nil for system-originated events
	ActorRole       ActorRole
	Action          string
	ResourceType    string
	ResourceID      *uuid.UUID
	ResourceOwnerID *uuid.UUID
	Metadata        map[string]any
	PreviousHash    string
	EntryHash       string
}

// canonicalPayload is the exact field set and order the entry hash covers.
// Struct field order fixes the JSON key order, so the encoding is
// deterministic. Metadata is deliberately excluded: it is an opaque
// annotation, not part of the chained record.
type canonicalPayload struct {
	ID           uuid.UUID  `json:"id"`
	Timestamp    string     `json:"timestamp"`
	ActorID      *uuid.UUID `json:"actorId"`
	ActorRole    ActorRole  `json:"actorRole"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resourceType"`
	ResourceID   *uuid.UUID `json:"resourceId"`
	PreviousHash string     `json:"previousHash"`
}

// ComputeEntryHash returns the hex SHA-256 digest over the entry's canonical
// payload. The stored EntryHash field is ignored; PreviousHash is included,
// which is what chains each entry to its predecessor.
func ComputeEntryHash(e *AuditEntry) (string, error) {
	payload := canonicalPayload{
		ID:           e.ID,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:      e.ActorID,
		ActorRole:    e.ActorRole,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		PreviousHash: e.PreviousHash,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// ChainVerification is the result of walking the full ledger.
type ChainVerification struct {
	Valid        bool
	TotalEntries int
	// BrokenAtID identifies the first entry whose stored previous hash or
	// recomputed entry hash disagrees with the chain. Nil when Valid.
	BrokenAtID *uuid.UUID
}
