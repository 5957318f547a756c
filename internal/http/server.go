package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	"github.com/splitrx/splitrx/internal/metrics"
)

// RouteRegistrar attaches a module's routes to the versioned API group. The
// group carries ActorMiddleware; every handler can rely on ActorID.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// PublicRouteRegistrar attaches routes that must work without a caller id,
// such as registration and login.
type PublicRouteRegistrar interface {
	RegisterPublicRoutes(rg *gin.RouterGroup)
}

// RouterConfig carries everything the router assembly needs.
type RouterConfig struct {
	Logger           *slog.Logger
	CORSEnabled      bool
	CORSAllowOrigins string
	MeterProvider    metric.MeterProvider
	MetricsNamespace string
}

// Server represents the API HTTP server.
type Server struct {
	server       *http.Server
	logger       *slog.Logger
	shuttingDown atomic.Bool
}

// NewServer creates the API server with the assembled router.
func NewServer(
	host string,
	port int,
	cfg RouterConfig,
	registrars ...RouteRegistrar,
) *Server {
	s := &Server{logger: cfg.Logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(cfg.Logger))

	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, cfg.Logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", HealthHandler)
	router.GET("/ready", ReadinessHandler(s.shuttingDown.Load))

	v1Public := router.Group("/v1")
	v1 := router.Group("/v1")
	v1.Use(ActorMiddleware(cfg.Logger))
	for _, registrar := range registrars {
		if public, ok := registrar.(PublicRouteRegistrar); ok {
			public.RegisterPublicRoutes(v1Public)
		}
		registrar.RegisterRoutes(v1)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
