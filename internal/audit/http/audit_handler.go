// Package http provides HTTP handlers for the audit ledger.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/audit/http/dto"
	auditUsecase "github.com/splitrx/splitrx/internal/audit/usecase"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/httputil"
	userDomain "github.com/splitrx/splitrx/internal/user/domain"
	userUsecase "github.com/splitrx/splitrx/internal/user/usecase"
)

// AuditHandler handles HTTP requests for ledger verification and log listings.
type AuditHandler struct {
	ledger auditUsecase.LedgerUseCase
	users  userUsecase.UseCase
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(
	ledger auditUsecase.LedgerUseCase,
	users userUsecase.UseCase,
	logger *slog.Logger,
) *AuditHandler {
	return &AuditHandler{
		ledger: ledger,
		users:  users,
		logger: logger,
	}
}

// RegisterRoutes attaches the audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit/verify", h.VerifyChainHandler)
	rg.GET("/audit/resource/:id", h.ResourceLogsHandler)
	rg.GET("/audit/user/:id", h.UserLogsHandler)
}

func (h *AuditHandler) requireAdmin(c *gin.Context) bool {
	actor, err := h.users.GetByID(c.Request.Context(), apphttp.ActorID(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return false
	}
	if actor.Role != userDomain.RoleAdmin {
		httputil.HandleErrorGin(c,
			apperrors.Wrap(apperrors.ErrUnauthorized, "admin role required"), h.logger)
		return false
	}
	return true
}

// VerifyChainHandler walks the full ledger and reports the first break.
// GET /v1/audit/verify - admin only.
func (h *AuditHandler) VerifyChainHandler(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	verification, err := h.ledger.VerifyChain(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewVerificationResponse(verification))
}

// ResourceLogsHandler lists the ledger entries of a resource.
// GET /v1/audit/resource/:id - admin only.
func (h *AuditHandler) ResourceLogsHandler(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid resource id"), h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	entries, err := h.ledger.ListForResource(c.Request.Context(), resourceID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": dto.NewEntryListResponse(paginate(entries, offset, limit))})
}

// UserLogsHandler lists the entries concerning a user, floored at their
// latest registration or reactivation.
// GET /v1/audit/user/:id - the user themselves or an admin.
func (h *AuditHandler) UserLogsHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid user id"), h.logger)
		return
	}

	actorID := apphttp.ActorID(c)
	if actorID != userID {
		actor, err := h.users.GetByID(c.Request.Context(), actorID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		if actor.Role != userDomain.RoleAdmin {
			httputil.HandleErrorGin(c,
				apperrors.Wrap(apperrors.ErrUnauthorized, "cannot read another user's audit log"), h.logger)
			return
		}
	}

	entries, err := h.ledger.ListForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": dto.NewEntryListResponse(entries)})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
