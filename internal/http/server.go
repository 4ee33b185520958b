// Package http wires the gin router, middleware and health endpoints for the API server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/piivault/internal/config"
	"github.com/allisson/piivault/internal/metrics"
	userHTTP "github.com/allisson/piivault/internal/user/http"
)

// EncryptionStatus reports whether field encryption keys are configured.
type EncryptionStatus interface {
	Enabled() bool
	FallbackInUse() bool
}

// Server represents the API HTTP server.
type Server struct {
	db         *sql.DB
	encryption EncryptionStatus
	server     *http.Server
	router     *gin.Engine
	logger     *slog.Logger
}

// NewServer creates a new Server. SetupRouter must be called before Start.
func NewServer(
	db *sql.DB,
	encryption EncryptionStatus,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:         db,
		encryption: encryption,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// SetupRouter builds the router with middleware, health endpoints and the /v1 API.
func (s *Server) SetupRouter(
	cfg *config.Config,
	userHandler *userHTTP.UserHandler,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cors := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); cors != nil {
		router.Use(cors)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if userHandler != nil {
		userHandler.RegisterRoutes(v1)
	}

	s.router = router
	s.server.Handler = router
}

// GetHandler returns the router for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.server.Handler == nil {
		s.server.Handler = s.router
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler pings the database. Field encryption state is reported but never
// makes the server unready, since boot already refused when encryption was required.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := http.StatusOK

	if s.db == nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness database ping failed", slog.Any("error", err))
			components["database"] = "error"
			status = http.StatusServiceUnavailable
		}
	}

	switch {
	case s.encryption == nil || !s.encryption.Enabled():
		components["field_encryption"] = "disabled"
	case s.encryption.FallbackInUse():
		components["field_encryption"] = "fallback"
	default:
		components["field_encryption"] = "enabled"
	}

	body := gin.H{"status": "ready", "components": components}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	c.JSON(status, body)
}
