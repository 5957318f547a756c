// Package http provides HTTP handlers for consent and data erasure.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/consent/http/dto"
	"github.com/splitrx/splitrx/internal/consent/usecase"
	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/httputil"
)

// ConsentHandler handles HTTP requests for consent management.
type ConsentHandler struct {
	consentUseCase usecase.UseCase
	logger         *slog.Logger
}

// NewConsentHandler creates a new ConsentHandler.
func NewConsentHandler(consentUseCase usecase.UseCase, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{
		consentUseCase: consentUseCase,
		logger:         logger,
	}
}

// RegisterRoutes attaches the consent routes.
func (h *ConsentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consents", h.GrantHandler)
	rg.GET("/consents", h.ListHandler)
	rg.DELETE("/consents/:id", h.RevokeHandler)
	rg.POST("/erasure", h.ErasureHandler)
}

// GrantHandler records the calling patient's consent for a clinician.
// POST /v1/consents
func (h *ConsentHandler) GrantHandler(c *gin.Context) {
	var req dto.GrantConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	record, err := h.consentUseCase.Grant(c.Request.Context(), apphttp.ActorID(c), req.GrantedTo, req.Scope)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.NewConsentResponse(record))
}

// RevokeHandler withdraws one of the caller's grants.
// DELETE /v1/consents/:id
func (h *ConsentHandler) RevokeHandler(c *gin.Context) {
	consentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid consent id"), h.logger)
		return
	}

	if err := h.consentUseCase.Revoke(c.Request.Context(), apphttp.ActorID(c), consentID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListHandler lists the caller's grants, revoked ones included.
// GET /v1/consents
func (h *ConsentHandler) ListHandler(c *gin.Context) {
	actorID := apphttp.ActorID(c)
	records, err := h.consentUseCase.ListForPatient(c.Request.Context(), actorID, actorID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"consents": dto.NewConsentListResponse(records)})
}

// ErasureHandler cancels the caller's active prescriptions, revokes their
// grants, and deactivates the account.
// POST /v1/erasure
func (h *ConsentHandler) ErasureHandler(c *gin.Context) {
	if err := h.consentUseCase.RequestDataErasure(c.Request.Context(), apphttp.ActorID(c)); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusAccepted)
}
