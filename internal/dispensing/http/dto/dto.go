// Package dto defines request and response payloads for the dispensing endpoints.
package dto

import (
	"time"

	"github.com/splitrx/splitrx/internal/dispensing/domain"
	prescriptionDTO "github.com/splitrx/splitrx/internal/prescription/http/dto"
)

// DispenseRequest is the payload for dispensing a prescription.
type DispenseRequest struct {
	PharmacyName string `json:"pharmacy_name"`
}

// VerificationResponse reports the checks a pharmacist runs before dispensing.
type VerificationResponse struct {
	PrescriptionID     string                           `json:"prescription_id"`
	PrescriptionNumber string                           `json:"prescription_number"`
	Status             string                           `json:"status"`
	Expired            bool                             `json:"expired"`
	SignatureValid     bool                             `json:"signature_valid"`
	IntegrityValid     bool                             `json:"integrity_valid"`
	Dispensable        bool                             `json:"dispensable"`
	Payload            *prescriptionDTO.PayloadResponse `json:"payload,omitempty"`
}

// NewVerificationResponse maps a verification report.
func NewVerificationResponse(report *domain.VerificationReport) VerificationResponse {
	response := VerificationResponse{
		PrescriptionID:     report.PrescriptionID.String(),
		PrescriptionNumber: report.PrescriptionNumber,
		Status:             string(report.Status),
		Expired:            report.Expired,
		SignatureValid:     report.SignatureValid,
		IntegrityValid:     report.IntegrityValid,
		Dispensable:        report.Dispensable,
	}
	if report.Payload != nil {
		medications := make([]prescriptionDTO.MedicationRequest, 0, len(report.Payload.Medications))
		for _, medication := range report.Payload.Medications {
			medications = append(medications, prescriptionDTO.MedicationRequest{
				Name:      medication.Name,
				Dosage:    medication.Dosage,
				Frequency: medication.Frequency,
				Duration:  medication.Duration,
			})
		}
		response.Payload = &prescriptionDTO.PayloadResponse{
			Medications: medications,
			Notes:       report.Payload.Notes,
		}
	}
	return response
}

// DispensingRecordResponse is the public view of a dispensing record.
type DispensingRecordResponse struct {
	ID               string    `json:"id"`
	PrescriptionID   string    `json:"prescription_id"`
	PharmacistID     string    `json:"pharmacist_id"`
	PharmacyName     string    `json:"pharmacy_name"`
	VerificationHash string    `json:"verification_hash"`
	DispensedAt      time.Time `json:"dispensed_at"`
}

// NewDispensingRecordResponse maps a dispensing record.
func NewDispensingRecordResponse(record *domain.DispensingRecord) DispensingRecordResponse {
	return DispensingRecordResponse{
		ID:               record.ID.String(),
		PrescriptionID:   record.PrescriptionID.String(),
		PharmacistID:     record.PharmacistID.String(),
		PharmacyName:     record.PharmacyName,
		VerificationHash: record.VerificationHash,
		DispensedAt:      record.DispensedAt,
	}
}

// HistoryEntryResponse is one row of the pharmacist's dispensing history.
type HistoryEntryResponse struct {
	DispensingRecordResponse
	PrescriptionNumber string `json:"prescription_number"`
	PatientName        string `json:"patient_name"`
	DoctorName         string `json:"doctor_name"`
}

// NewHistoryListResponse maps a slice of history entries.
func NewHistoryListResponse(entries []*domain.HistoryEntry) []HistoryEntryResponse {
	responses := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, HistoryEntryResponse{
			DispensingRecordResponse: NewDispensingRecordResponse(&entry.DispensingRecord),
			PrescriptionNumber:       entry.PrescriptionNumber,
			PatientName:              entry.PatientName,
			DoctorName:               entry.DoctorName,
		})
	}
	return responses
}
