// Package dto defines response payloads for the audit endpoints.
package dto

import (
	"time"

	"github.com/splitrx/splitrx/internal/audit/domain"
)

// EntryResponse is the public view of a ledger entry.
type EntryResponse struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	ActorID         *string        `json:"actor_id,omitempty"`
	ActorRole       string         `json:"actor_role"`
	Action          string         `json:"action"`
	ResourceType    string         `json:"resource_type"`
	ResourceID      *string        `json:"resource_id,omitempty"`
	ResourceOwnerID *string        `json:"resource_owner_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	PreviousHash    string         `json:"previous_hash"`
	EntryHash       string         `json:"entry_hash"`
}

// NewEntryResponse maps a ledger entry to its response payload.
func NewEntryResponse(entry *domain.AuditEntry) EntryResponse {
	response := EntryResponse{
		ID:           entry.ID.String(),
		Timestamp:    entry.Timestamp,
		ActorRole:    string(entry.ActorRole),
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		Metadata:     entry.Metadata,
		PreviousHash: entry.PreviousHash,
		EntryHash:    entry.EntryHash,
	}
	if entry.ActorID != nil {
		id := entry.ActorID.String()
		response.ActorID = &id
	}
	if entry.ResourceID != nil {
		id := entry.ResourceID.String()
		response.ResourceID = &id
	}
	if entry.ResourceOwnerID != nil {
		id := entry.ResourceOwnerID.String()
		response.ResourceOwnerID = &id
	}
	return response
}

// NewEntryListResponse maps a slice of ledger entries.
func NewEntryListResponse(entries []*domain.AuditEntry) []EntryResponse {
	responses := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewEntryResponse(entry))
	}
	return responses
}

// VerificationResponse reports the outcome of a full chain walk.
type VerificationResponse struct {
	Valid        bool    `json:"valid"`
	TotalEntries int     `json:"total_entries"`
	BrokenAtID   *string `json:"broken_at_id,omitempty"`
}

// NewVerificationResponse maps a chain verification result.
func NewVerificationResponse(verification *domain.ChainVerification) VerificationResponse {
	response := VerificationResponse{
		Valid:        verification.Valid,
		TotalEntries: verification.TotalEntries,
	}
	if verification.BrokenAtID != nil {
		id := verification.BrokenAtID.String()
		response.BrokenAtID = &id
	}
	return response
}
