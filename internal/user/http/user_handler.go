// Package http provides HTTP handlers for account management.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/splitrx/splitrx/internal/errors"
	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/httputil"
	"github.com/splitrx/splitrx/internal/user/http/dto"
	"github.com/splitrx/splitrx/internal/user/usecase"
)

// UserHandler handles HTTP requests for account management.
type UserHandler struct {
	userUseCase usecase.UseCase
	logger      *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userUseCase usecase.UseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		logger:      logger,
	}
}

// RegisterPublicRoutes attaches the routes that work without a caller id.
func (h *UserHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/users", h.RegisterHandler)
	rg.POST("/login", h.LoginHandler)
}

// RegisterRoutes attaches the authenticated routes.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.MeHandler)
	rg.POST("/users/:id/rotate-keys", h.RotateKeysHandler)
	rg.POST("/users/:id/reactivate", h.ReactivateHandler)
}

// RegisterHandler creates an account with a fresh signing keypair.
// POST /v1/users
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	user, err := h.userUseCase.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.NewUserResponse(user))
}

// LoginHandler verifies credentials and returns the account.
// POST /v1/login
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	user, err := h.userUseCase.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// MeHandler returns the caller's account.
// GET /v1/users/me
func (h *UserHandler) MeHandler(c *gin.Context) {
	user, err := h.userUseCase.GetByID(c.Request.Context(), apphttp.ActorID(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// RotateKeysHandler rotates the caller's signing keypair.
// POST /v1/users/:id/rotate-keys
func (h *UserHandler) RotateKeysHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid user id"), h.logger)
		return
	}

	// Keys can only be rotated by their owner.
	if apphttp.ActorID(c) != userID {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "cannot rotate another user's keys"), h.logger)
		return
	}

	var req dto.RotateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	user, err := h.userUseCase.RotateKeys(c.Request.Context(), userID, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// ReactivateHandler reactivates a deactivated account.
// POST /v1/users/:id/reactivate
func (h *UserHandler) ReactivateHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid user id"), h.logger)
		return
	}

	if err := h.userUseCase.Reactivate(c.Request.Context(), apphttp.ActorID(c), userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
