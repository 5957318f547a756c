// Package dto defines request and response payloads for the consent endpoints.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/consent/domain"
)

// GrantConsentRequest is the payload for granting read access.
type GrantConsentRequest struct {
	GrantedTo uuid.UUID `json:"granted_to"`
	Scope     string    `json:"scope"`
}

// ConsentResponse is the public view of a consent record.
type ConsentResponse struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patient_id"`
	GrantedTo string     `json:"granted_to"`
	Scope     string     `json:"scope"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	Active    bool       `json:"active"`
}

// NewConsentResponse maps a consent record.
func NewConsentResponse(record *domain.ConsentRecord) ConsentResponse {
	return ConsentResponse{
		ID:        record.ID.String(),
		PatientID: record.PatientID.String(),
		GrantedTo: record.GrantedTo.String(),
		Scope:     record.Scope,
		GrantedAt: record.GrantedAt,
		RevokedAt: record.RevokedAt,
		Active:    record.Active(),
	}
}

// NewConsentListResponse maps a slice of consent records.
func NewConsentListResponse(records []*domain.ConsentRecord) []ConsentResponse {
	responses := make([]ConsentResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewConsentResponse(record))
	}
	return responses
}
