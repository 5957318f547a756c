// Package http provides HTTP handlers for pharmacy verification and dispensing.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/dispensing/http/dto"
	"github.com/splitrx/splitrx/internal/dispensing/usecase"
	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/httputil"
)

// DispensingHandler handles HTTP requests for verification and dispensing.
type DispensingHandler struct {
	dispensingUseCase usecase.UseCase
	logger            *slog.Logger
}

// NewDispensingHandler creates a new DispensingHandler.
func NewDispensingHandler(dispensingUseCase usecase.UseCase, logger *slog.Logger) *DispensingHandler {
	return &DispensingHandler{
		dispensingUseCase: dispensingUseCase,
		logger:            logger,
	}
}

// RegisterRoutes attaches the dispensing routes.
func (h *DispensingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dispensing/history", h.HistoryHandler)
	rg.GET("/dispensing/:prescriptionId/verify", h.VerifyHandler)
	rg.POST("/dispensing/:prescriptionId", h.DispenseHandler)
}

// VerifyHandler runs the read-only verification checks.
// GET /v1/dispensing/:prescriptionId/verify
func (h *DispensingHandler) VerifyHandler(c *gin.Context) {
	prescriptionID, err := uuid.Parse(c.Param("prescriptionId"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid prescription id"), h.logger)
		return
	}

	report, err := h.dispensingUseCase.Verify(c.Request.Context(), apphttp.ActorID(c), prescriptionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewVerificationResponse(report))
}

// DispenseHandler re-verifies under a row lock and settles the prescription.
// POST /v1/dispensing/:prescriptionId
func (h *DispensingHandler) DispenseHandler(c *gin.Context) {
	prescriptionID, err := uuid.Parse(c.Param("prescriptionId"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid prescription id"), h.logger)
		return
	}

	var req dto.DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	record, err := h.dispensingUseCase.VerifyAndDispense(
		c.Request.Context(), apphttp.ActorID(c), req.PharmacyName, prescriptionID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.NewDispensingRecordResponse(record))
}

// HistoryHandler lists the calling pharmacist's dispensing records.
// GET /v1/dispensing/history
func (h *DispensingHandler) HistoryHandler(c *gin.Context) {
	records, err := h.dispensingUseCase.History(c.Request.Context(), apphttp.ActorID(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": dto.NewHistoryListResponse(records)})
}
