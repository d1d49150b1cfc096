// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-keyutils/pkg/adapters/logger"
	"github.com/jeremyhahn/go-keyutils/pkg/metrics"
	"github.com/jeremyhahn/go-keyutils/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the REST API server.
type Server struct {
	server         *http.Server
	handlers       *HandlerContext
	host           string
	port           int
	certFile       string
	keyFile        string
	logger         logger.Logger
	rateLimiter    *ratelimit.Limiter
	metricsPath    string
	healthPath     string
	allowedOrigins []string
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the address to bind to (default: all interfaces)
	Host string

	// Port is the HTTP port to listen on (default: 8443)
	Port int

	// Version is the API version string
	Version string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set
	TLSCertFile string
	TLSKeyFile  string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// Logger is the logging adapter (optional, uses slog if not provided)
	Logger logger.Logger

	// RateLimiter limits requests per client when set (optional)
	RateLimiter *ratelimit.Limiter

	// MetricsPath serves Prometheus metrics when non-empty
	MetricsPath string

	// HealthPath is the base path for health probes (default: /healthz)
	HealthPath string

	// AllowedOrigins restricts CORS; empty or "*" allows any origin
	AllowedOrigins []string
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}

	// Set up logger (default to slog if not provided)
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{
			Level: logger.LevelInfo,
		})
	}

	// Create handler context
	handlers := NewHandlerContext(cfg.Version)

	// Create server instance
	server := &Server{
		handlers:       handlers,
		host:           cfg.Host,
		port:           cfg.Port,
		certFile:       cfg.TLSCertFile,
		keyFile:        cfg.TLSKeyFile,
		logger:         log,
		rateLimiter:    cfg.RateLimiter,
		metricsPath:    cfg.MetricsPath,
		healthPath:     cfg.HealthPath,
		allowedOrigins: cfg.AllowedOrigins,
	}

	// Create router with middleware
	router := server.setupRouter()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	server.server = httpServer

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware()) // Add correlation ID before logging
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	if s.rateLimiter != nil {
		r.Use(ratelimit.Middleware(s.rateLimiter))
	}
	r.Use(CORSMiddleware(s.allowedOrigins))

	// Health probes (no auth required)
	r.Route(s.healthPath, func(r chi.Router) {
		r.Get("/", s.handlers.HealthHandler)
		r.Head("/", s.handlers.HealthHandler)

		// Kubernetes-style probes
		r.Get("/live", s.handlers.LivenessHandler)
		r.Get("/ready", s.handlers.ReadinessHandler)
		r.Get("/startup", s.handlers.StartupHandler)
	})

	// Prometheus metrics
	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Keyring endpoints; {ring} accepts @-aliases or decimal serials
		r.Route("/keyrings/{ring}", func(r chi.Router) {
			r.Get("/", s.handlers.GetKeyringHandler)
			r.Get("/search", s.handlers.SearchHandler)

			r.Get("/links", s.handlers.ListLinksHandler)
			r.Post("/links", s.handlers.LinkHandler)
			r.Delete("/links/{id}", s.handlers.UnlinkHandler)

			r.Post("/keys", s.handlers.AddKeyHandler)
			r.Delete("/keys", s.handlers.ClearHandler)
		})

		// Key endpoints
		r.Route("/keys/{id}", func(r chi.Router) {
			r.Get("/", s.handlers.GetKeyHandler)
			r.Put("/", s.handlers.UpdateKeyHandler)
			r.Delete("/", s.handlers.DeleteKeyHandler)

			r.Get("/payload", s.handlers.ReadKeyHandler)
			r.Put("/timeout", s.handlers.TimeoutHandler)
			r.Put("/permissions", s.handlers.PermissionsHandler)
		})
	})

	return r
}

// Start starts the REST API server.
func (s *Server) Start() error {
	if s.certFile != "" && s.keyFile != "" {
		s.logger.Info("Starting HTTPS server",
			logger.String("host", s.host),
			logger.Int("port", s.port))

		if err := s.server.ListenAndServeTLS(s.certFile, s.keyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server",
			logger.String("host", s.host),
			logger.Int("port", s.port))

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetHealthChecker sets the health checker for the server.
func (s *Server) SetHealthChecker(checker HealthChecker) {
	s.handlers.SetHealthChecker(checker)
}
