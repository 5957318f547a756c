package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *AuditEntry {
	actorID := uuid.Must(uuid.NewV7())
	resourceID := uuid.Must(uuid.NewV7())
	return &AuditEntry{
		ID:           uuid.Must(uuid.NewV7()),
		Timestamp:    time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ActorID:      &actorID,
		ActorRole:    RoleDoctor,
		Action:       ActionPrescriptionCreated,
		ResourceType: "prescription",
		ResourceID:   &resourceID,
		PreviousHash: SentinelHash,
	}
}

func TestSentinelHash(t *testing.T) {
	assert.Len(t, SentinelHash, 64)
	assert.Equal(t, strings.Repeat("0", 64), SentinelHash)
}

func TestComputeEntryHash(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		entry := testEntry()

		first, err := ComputeEntryHash(entry)
		require.NoError(t, err)
		second, err := ComputeEntryHash(entry)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
	})

	t.Run("MetadataDoesNotAffectHash", func(t *testing.T) {
		entry := testEntry()
		bare, err := ComputeEntryHash(entry)
		require.NoError(t, err)

		entry.Metadata = map[string]any{"request_id": "abc", "alert": true}
		annotated, err := ComputeEntryHash(entry)
		require.NoError(t, err)

		assert.Equal(t, bare, annotated)
	})

	t.Run("EachHashedFieldAffectsHash", func(t *testing.T) {
		base := testEntry()
		baseHash, err := ComputeEntryHash(base)
		require.NoError(t, err)

		mutations := map[string]func(*AuditEntry){
			"id":            func(e *AuditEntry) { e.ID = uuid.Must(uuid.NewV7()) },
			"timestamp":     func(e *AuditEntry) { e.Timestamp = e.Timestamp.Add(time.Microsecond) },
			"actor_id":      func(e *AuditEntry) { e.ActorID = nil },
			"actor_role":    func(e *AuditEntry) { e.ActorRole = RoleAdmin },
			"action":        func(e *AuditEntry) { e.Action = ActionPrescriptionDispensed },
			"resource_type": func(e *AuditEntry) { e.ResourceType = "user" },
			"resource_id":   func(e *AuditEntry) { e.ResourceID = nil },
			"previous_hash": func(e *AuditEntry) { e.PreviousHash = strings.Repeat("f", 64) },
		}

		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				entry := testEntry()
				*entry = *base
				mutate(entry)

				mutated, err := ComputeEntryHash(entry)
				require.NoError(t, err)
				assert.NotEqual(t, baseHash, mutated)
			})
		}
	})

	t.Run("StoredEntryHashIsIgnored", func(t *testing.T) {
		entry := testEntry()
		expected, err := ComputeEntryHash(entry)
		require.NoError(t, err)

		entry.EntryHash = strings.Repeat("a", 64)
		recomputed, err := ComputeEntryHash(entry)
		require.NoError(t, err)

		assert.Equal(t, expected, recomputed)
	})
}

func TestEventValidate(t *testing.T) {
	actorID := uuid.Must(uuid.NewV7())

	validEvent := func() *Event {
		return &Event{
			ActorID:      &actorID,
			ActorRole:    RolePharmacist,
			Action:       ActionPrescriptionVerified,
			ResourceType: "prescription",
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, validEvent().Validate())
	})

	t.Run("InvalidActorRole", func(t *testing.T) {
		event := validEvent()
		event.ActorRole = "superuser"
		assert.ErrorIs(t, event.Validate(), ErrInvalidActorRole)
	})

	t.Run("MissingAction", func(t *testing.T) {
		event := validEvent()
		event.Action = ""
		assert.Error(t, event.Validate())
	})

	t.Run("MissingResourceType", func(t *testing.T) {
		event := validEvent()
		event.ResourceType = ""
		assert.Error(t, event.Validate())
	})

	t.Run("DisallowedMetadataKeys", func(t *testing.T) {
		for _, key := range []string{"medication_name", "medications", "dosage", "frequency", "duration", "notes", "payload"} {
			event := validEvent()
			event.Metadata = map[string]any{key: "anything"}
			assert.ErrorIs(t, event.Validate(), ErrDisallowedMetadata, "key %q must be rejected", key)
		}
	})

	t.Run("AllowedMetadata", func(t *testing.T) {
		event := validEvent()
		event.Metadata = map[string]any{"reason": "rotation", "alert": true}
		assert.NoError(t, event.Validate())
	})
}

func TestActorRoleValid(t *testing.T) {
	for _, role := range []ActorRole{RoleDoctor, RolePatient, RolePharmacist, RoleAdmin, RoleSystem} {
		assert.True(t, role.Valid(), "role %q", role)
	}
	assert.False(t, ActorRole("").Valid())
	assert.False(t, ActorRole("nurse").Valid())
}
