// Package dto defines request and response payloads for the prescription endpoints.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/prescription/domain"
	"github.com/splitrx/splitrx/internal/prescription/usecase"
)

// MedicationRequest is one prescribed medication.
type MedicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// CreatePrescriptionRequest is the payload for issuing a prescription.
type CreatePrescriptionRequest struct {
	PatientID     uuid.UUID           `json:"patient_id"`
	Medications   []MedicationRequest `json:"medications"`
	Notes         string              `json:"notes"`
	ExpiresInDays int                 `json:"expires_in_days"`
}

// ToInput converts the request to a use case input.
func (r *CreatePrescriptionRequest) ToInput() usecase.CreateInput {
	medications := make([]domain.Medication, 0, len(r.Medications))
	for _, medication := range r.Medications {
		medications = append(medications, domain.Medication{
			Name:      medication.Name,
			Dosage:    medication.Dosage,
			Frequency: medication.Frequency,
			Duration:  medication.Duration,
		})
	}
	return usecase.CreateInput{
		PatientID:     r.PatientID,
		Medications:   medications,
		Notes:         r.Notes,
		ExpiresInDays: r.ExpiresInDays,
	}
}

// PrescriptionResponse is the public view of a prescription. The encrypted
// payload and signature stay server-side.
type PrescriptionResponse struct {
	ID                 string           `json:"id"`
	PrescriptionNumber string           `json:"prescription_number"`
	DoctorID           string           `json:"doctor_id"`
	PatientID          string           `json:"patient_id"`
	Status             string           `json:"status"`
	IssuedAt           time.Time        `json:"issued_at"`
	ExpiresAt          time.Time        `json:"expires_at"`
	DispensedAt        *time.Time       `json:"dispensed_at,omitempty"`
	Payload            *PayloadResponse `json:"payload,omitempty"`
}

// PayloadResponse is the decrypted clinical content.
type PayloadResponse struct {
	Medications []MedicationRequest `json:"medications"`
	Notes       string              `json:"notes,omitempty"`
}

// NewPrescriptionResponse maps a prescription and its optional decrypted payload.
func NewPrescriptionResponse(prescription *domain.Prescription, payload *domain.Payload) PrescriptionResponse {
	response := PrescriptionResponse{
		ID:                 prescription.ID.String(),
		PrescriptionNumber: prescription.PrescriptionNumber,
		DoctorID:           prescription.DoctorID.String(),
		PatientID:          prescription.PatientID.String(),
		Status:             string(prescription.Status),
		IssuedAt:           prescription.IssuedAt,
		ExpiresAt:          prescription.ExpiresAt,
		DispensedAt:        prescription.DispensedAt,
	}
	if payload != nil {
		response.Payload = newPayloadResponse(payload)
	}
	return response
}

func newPayloadResponse(payload *domain.Payload) *PayloadResponse {
	medications := make([]MedicationRequest, 0, len(payload.Medications))
	for _, medication := range payload.Medications {
		medications = append(medications, MedicationRequest{
			Name:      medication.Name,
			Dosage:    medication.Dosage,
			Frequency: medication.Frequency,
			Duration:  medication.Duration,
		})
	}
	return &PayloadResponse{
		Medications: medications,
		Notes:       payload.Notes,
	}
}

// NewPrescriptionListResponse maps a slice of prescriptions without payloads.
// Used for the doctor's own listing, where the encrypted record is enough.
func NewPrescriptionListResponse(prescriptions []*domain.Prescription) []PrescriptionResponse {
	responses := make([]PrescriptionResponse, 0, len(prescriptions))
	for _, prescription := range prescriptions {
		responses = append(responses, NewPrescriptionResponse(prescription, nil))
	}
	return responses
}

// NewDecryptedListResponse maps a slice of decrypted prescriptions, payloads
// included.
func NewDecryptedListResponse(prescriptions []*usecase.DecryptedPrescription) []PrescriptionResponse {
	responses := make([]PrescriptionResponse, 0, len(prescriptions))
	for _, decrypted := range prescriptions {
		responses = append(responses, NewPrescriptionResponse(decrypted.Prescription, decrypted.Payload))
	}
	return responses
}
