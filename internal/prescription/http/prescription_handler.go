// Package http provides HTTP handlers for prescription lifecycle operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/httputil"
	"github.com/splitrx/splitrx/internal/prescription/http/dto"
	"github.com/splitrx/splitrx/internal/prescription/usecase"
)

// PrescriptionHandler handles HTTP requests for prescriptions.
type PrescriptionHandler struct {
	prescriptionUseCase usecase.UseCase
	logger              *slog.Logger
}

// NewPrescriptionHandler creates a new PrescriptionHandler.
func NewPrescriptionHandler(prescriptionUseCase usecase.UseCase, logger *slog.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptionUseCase: prescriptionUseCase,
		logger:              logger,
	}
}

// RegisterRoutes attaches the prescription routes.
func (h *PrescriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/prescriptions", h.CreateHandler)
	rg.GET("/prescriptions", h.ListForDoctorHandler)
	rg.GET("/prescriptions/:id", h.GetHandler)
	rg.GET("/prescriptions/:id/qr", h.QRHandler)
	rg.GET("/patients/:id/prescriptions", h.ListForPatientHandler)
}

// CreateHandler issues a prescription on behalf of the calling doctor.
// POST /v1/prescriptions
func (h *PrescriptionHandler) CreateHandler(c *gin.Context) {
	var req dto.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	prescription, err := h.prescriptionUseCase.Create(c.Request.Context(), apphttp.ActorID(c), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.NewPrescriptionResponse(prescription, nil))
}

// GetHandler returns a prescription with its decrypted payload.
// GET /v1/prescriptions/:id
func (h *PrescriptionHandler) GetHandler(c *gin.Context) {
	prescriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid prescription id"), h.logger)
		return
	}

	prescription, payload, err := h.prescriptionUseCase.Get(c.Request.Context(), apphttp.ActorID(c), prescriptionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewPrescriptionResponse(prescription, payload))
}

// QRHandler renders the prescription's verification reference as a PNG.
// GET /v1/prescriptions/:id/qr
func (h *PrescriptionHandler) QRHandler(c *gin.Context) {
	prescriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid prescription id"), h.logger)
		return
	}

	png, err := h.prescriptionUseCase.GenerateQR(c.Request.Context(), apphttp.ActorID(c), prescriptionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// ListForPatientHandler lists a patient's prescriptions.
// GET /v1/patients/:id/prescriptions
func (h *PrescriptionHandler) ListForPatientHandler(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid patient id"), h.logger)
		return
	}

	prescriptions, err := h.prescriptionUseCase.ListForPatient(c.Request.Context(), apphttp.ActorID(c), patientID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prescriptions": dto.NewDecryptedListResponse(prescriptions)})
}

// ListForDoctorHandler lists the prescriptions the calling doctor issued.
// GET /v1/prescriptions
func (h *PrescriptionHandler) ListForDoctorHandler(c *gin.Context) {
	prescriptions, err := h.prescriptionUseCase.ListForDoctor(c.Request.Context(), apphttp.ActorID(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prescriptions": dto.NewPrescriptionListResponse(prescriptions)})
}
