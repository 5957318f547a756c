// Package http provides the Gin HTTP server, router assembly, and shared middleware.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/splitrx/splitrx/internal/errors"
	"github.com/splitrx/splitrx/internal/httputil"
)

// ActorIDHeader carries the authenticated caller's id, set by the upstream
// gateway. Session handling lives there, not here.
const ActorIDHeader = "X-Actor-Id"

const actorIDKey = "actorID"

// CustomLoggerMiddleware logs HTTP requests through slog.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// ActorMiddleware extracts the caller's id from the gateway header. Requests
// without a valid id never reach a handler.
func ActorMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(ActorIDHeader)
		if header == "" {
			err := fmt.Errorf("missing %s header: %w", ActorIDHeader, apperrors.ErrUnauthorized)
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		actorID, err := uuid.Parse(header)
		if err != nil {
			err = fmt.Errorf("invalid %s header: %w", ActorIDHeader, apperrors.ErrUnauthorized)
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		SetActorID(c, actorID)
		c.Next()
	}
}

// SetActorID stores the caller id on the context. Exposed for handler tests.
func SetActorID(c *gin.Context, id uuid.UUID) {
	c.Set(actorIDKey, id)
}

// ActorID returns the caller id stored by ActorMiddleware.
func ActorID(c *gin.Context) uuid.UUID {
	if value, exists := c.Get(actorIDKey); exists {
		if id, ok := value.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ReadinessHandler reports readiness, flipping to 503 once shutdown starts.
func ReadinessHandler(shuttingDown func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if shuttingDown() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
