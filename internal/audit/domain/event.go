package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Event is the caller-supplied part of a ledger entry. The ledger assigns the
// id, timestamp, and both hashes at append time.
type Event struct {
	ActorID         *uuid.UUID
	ActorRole       ActorRole
	Action          string
	ResourceType    string
	ResourceID      *uuid.UUID
	ResourceOwnerID *uuid.UUID
	Metadata        map[string]any
}

// disallowedMetadataKeys are metadata fields that would leak medical cleartext
// into the ledger. Enforced at write time so read paths never have to filter.
var disallowedMetadataKeys = map[string]struct{}{
	"medication_name": {},
	"medications":     {},
	"dosage":          {},
	"frequency":       {},
	"duration":        {},
	"notes":           {},
	"payload":         {},
}

var (
	// ErrInvalidActorRole indicates the event's actor role is outside the closed set.
	ErrInvalidActorRole = errors.New("invalid actor role")

	// ErrDisallowedMetadata indicates the event metadata contains a field that
	// must never be written to the ledger.
	ErrDisallowedMetadata = errors.New("disallowed metadata field")
)

// Validate checks the event is safe to append.
func (e *Event) Validate() error {
	if !e.ActorRole.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidActorRole, e.ActorRole)
	}
	if e.Action == "" {
		return errors.New("action is required")
	}
	if e.ResourceType == "" {
		return errors.New("resource type is required")
	}
	for key := range e.Metadata {
		if _, forbidden := disallowedMetadataKeys[key]; forbidden {
			return fmt.Errorf("%w: %q", ErrDisallowedMetadata, key)
		}
	}
	return nil
}
