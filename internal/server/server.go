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

// Package server wires the keyringd daemon together: it builds the
// process logger from configuration, exposes the REST API over the
// daemon's kernel keyrings, registers health checks against the keyctl
// facility and exports Prometheus metrics, including link-count gauges
// for configured keyrings.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-keyutils/internal/config"
	"github.com/jeremyhahn/go-keyutils/internal/rest"
	"github.com/jeremyhahn/go-keyutils/pkg/adapters/logger"
	"github.com/jeremyhahn/go-keyutils/pkg/health"
	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/logging"
	"github.com/jeremyhahn/go-keyutils/pkg/metrics"
	"github.com/jeremyhahn/go-keyutils/pkg/ratelimit"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// trackedLinksMax bounds the listing read behind the keyring link
// gauges. Counts above the cap report as the cap.
const trackedLinksMax = 4096

// Server represents the keyringd daemon
type Server struct {
	config *config.Config
	mu     sync.RWMutex
	logger *slog.Logger

	// Protocol servers
	restServer *rest.Server

	// Rate limiting
	rateLimiter *ratelimit.Limiter

	// Health checker
	healthChecker *health.Checker

	// Metrics
	metricsCollector *metrics.ResourceCollector

	// Lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// New creates a new daemon instance from the given configuration
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Setup logging
	log := setupLogger(cfg.Logging)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
	}

	// Initialize health checker
	s.initializeHealth()

	return s, nil
}

// setupLogger creates the process logger from the logging configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var output io.Writer
	switch cfg.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// #nosec G304 - Log file path is provided by admin/user
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			logging.Default().Warn("Failed to open log file, using stderr",
				slog.String("path", cfg.Output),
				slog.Any("error", err))
			output = os.Stderr
		} else {
			output = f
		}
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: output,
	})
	if err != nil {
		log = logging.Default()
		log.Warn("Invalid logging configuration, using defaults", slog.Any("error", err))
	}

	return log
}

// getBuildVersion retrieves the version from build information
func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	// Try to get version from VCS (git tag)
	for _, setting := range info.Settings {
		if setting.Key == "vcs.version" {
			if setting.Value != "" && setting.Value != "devel" {
				return setting.Value
			}
		}
		if setting.Key == "vcs.revision" {
			// Get short commit hash (first 7 chars)
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}

	// Try module version
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}

// initializeHealth creates the health checker and registers the keyctl
// readiness check. The check resolves the configured default keyring
// and reads its metadata, a round trip through the same syscall
// gateway every API operation uses.
func (s *Server) initializeHealth() {
	s.healthChecker = health.NewChecker()

	if !s.config.Health.Enabled {
		return
	}

	s.healthChecker.RegisterCheck("keyctl", func(ctx context.Context) health.CheckResult {
		start := time.Now()

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		// Run the check in a goroutine to respect the timeout
		done := make(chan error, 1)
		go func() {
			done <- s.probeDefaultKeyring()
		}()

		select {
		case err := <-done:
			latency := time.Since(start)
			if err != nil {
				return health.CheckResult{
					Name:    "keyctl",
					Status:  health.StatusUnhealthy,
					Message: "Kernel keyring facility is not responding",
					Error:   err.Error(),
					Latency: latency,
				}
			}
			return health.CheckResult{
				Name:    "keyctl",
				Status:  health.StatusHealthy,
				Message: "Kernel keyring facility is responding",
				Latency: latency,
			}
		case <-checkCtx.Done():
			return health.CheckResult{
				Name:    "keyctl",
				Status:  health.StatusUnhealthy,
				Message: "Kernel keyring check timed out",
				Error:   "timeout",
				Latency: time.Since(start),
			}
		}
	})
}

// probeDefaultKeyring resolves the keyring the daemon is configured to
// operate on and describes it. Special IDs are resolved with create
// semantics so a fresh daemon does not report unhealthy before its
// first mutating operation instantiates the keyring.
func (s *Server) probeDefaultKeyring() error {
	id := s.config.DefaultKeyring()

	var (
		ring keyring.Keyring
		err  error
	)
	if id < 0 {
		ring, err = keyring.FromSpecial(types.SpecialID(id), true)
	} else {
		ring, err = keyring.FromID(id)
	}
	if err != nil {
		return err
	}
	_, err = ring.Metadata()
	return err
}

// Start starts the daemon
func (s *Server) Start() error {
	s.logger.Info("Starting keyringd...",
		slog.String("version", getBuildVersion()),
		slog.String("default_keyring", s.config.Keyring.Default))

	// Join a named session keyring so the daemon operates against its
	// own session rather than whatever session it inherited
	if s.config.Keyring.SessionName != "" {
		ring, err := keyring.JoinSession(s.config.Keyring.SessionName)
		if err != nil {
			return fmt.Errorf("failed to join session keyring %q: %w",
				s.config.Keyring.SessionName, err)
		}
		s.logger.Info("Joined session keyring",
			slog.String("name", s.config.Keyring.SessionName),
			slog.Int("serial", int(ring.ID())))
	}

	// Initialize metrics if enabled
	if s.config.Metrics.Enabled {
		s.initializeMetrics()
	}

	// Create rate limiter if enabled
	if s.config.RateLimit.Enabled {
		s.rateLimiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: s.config.RateLimit.RequestsPerMin,
			Burst:             s.config.RateLimit.Burst,
		})
	}

	// Build the REST server up front so configuration errors surface
	// before the daemon reports itself started
	if err := s.buildRESTServer(); err != nil {
		return fmt.Errorf("failed to create REST server: %w", err)
	}

	s.wg.Add(1)
	go s.startREST()

	// Mark the service as started for health checks
	s.healthChecker.MarkStarted()

	s.logger.Info("keyringd started", slog.String("addr", s.restServer.Addr()))
	return nil
}

// buildRESTServer creates the REST server from the daemon configuration
func (s *Server) buildRESTServer() error {
	restConfig := &rest.Config{
		Host:         s.config.Server.Host,
		Port:         s.config.Server.Port,
		Version:      getBuildVersion(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
		Logger: logger.NewSlogAdapter(&logger.SlogConfig{
			Logger: s.logger.With("component", "rest"),
		}),
		RateLimiter:    s.rateLimiter,
		AllowedOrigins: s.config.CORS.AllowedOrigins,
	}

	if s.config.TLS.Enabled {
		restConfig.TLSCertFile = s.config.TLS.CertFile
		restConfig.TLSKeyFile = s.config.TLS.KeyFile
	}
	if s.config.Metrics.Enabled {
		restConfig.MetricsPath = s.config.Metrics.Path
	}
	if s.config.Health.Path != "" {
		restConfig.HealthPath = s.config.Health.Path
	}

	restServer, err := rest.NewServer(restConfig)
	if err != nil {
		return err
	}

	// Configure health checker for REST API
	restServer.SetHealthChecker(s.healthChecker)

	s.restServer = restServer
	return nil
}

// startREST runs the REST server until shutdown
func (s *Server) startREST() {
	defer s.wg.Done()

	s.logger.Info("Starting REST server",
		slog.String("addr", s.restServer.Addr()),
		slog.Bool("tls", s.config.TLS.Enabled))

	if err := s.restServer.Start(); err != nil {
		s.logger.Error("REST server error", slog.Any("error", err))
	}
}

// initializeMetrics enables metrics collection
func (s *Server) initializeMetrics() {
	s.logger.Info("Initializing metrics...")

	// Enable metrics collection
	metrics.Enable()

	// Start resource collector with 30-second interval
	s.metricsCollector = metrics.StartResourceCollector(s.ctx, 30*time.Second)

	// Sample link counts for the configured keyrings
	if len(s.config.Keyring.Tracked) > 0 {
		s.wg.Add(1)
		go s.trackKeyringLinks()
	}

	s.logger.Info("Metrics initialized successfully",
		slog.String("path", s.config.Metrics.Path),
		slog.Int("tracked_keyrings", len(s.config.Keyring.Tracked)))
}

// trackKeyringLinks periodically samples the link counts of the
// configured keyrings and exports them as gauges
func (s *Server) trackKeyringLinks() {
	defer s.wg.Done()

	interval := time.Duration(s.config.Keyring.TrackInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sampleKeyringLinks()
	for {
		select {
		case <-ticker.C:
			s.sampleKeyringLinks()
		case <-s.ctx.Done():
			return
		}
	}
}

// sampleKeyringLinks reads the current link count of every tracked
// keyring. Keyrings that cannot be read, not yet instantiated or
// revoked between samples, are skipped until the next tick.
func (s *Server) sampleKeyringLinks() {
	for _, ref := range s.config.Keyring.Tracked {
		id, err := types.ParseKeyRef(ref)
		if err != nil {
			// Validate rejects unparseable refs at load time
			continue
		}
		ring, err := keyring.FromID(id)
		if err != nil {
			continue
		}
		links, err := ring.Links(trackedLinksMax)
		if err != nil {
			s.logger.Debug("Keyring link sampling failed",
				slog.String("keyring", ref),
				slog.Any("error", err))
			continue
		}
		metrics.SetKeyringLinks(ref, float64(links.Len()))
	}
}

// Shutdown gracefully shuts down the daemon
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down keyringd...")

	// Stop metrics collector if running
	if s.metricsCollector != nil {
		s.metricsCollector.Stop()
	}

	// Cancel context to signal all goroutines
	s.cancel()

	// Create shutdown context with timeout
	timeout := time.Duration(s.config.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Shutdown REST server
	if s.restServer != nil {
		s.logger.Info("Shutting down REST server...")
		if err := s.restServer.Stop(shutdownCtx); err != nil {
			s.logger.Error("Error shutting down REST server", slog.Any("error", err))
		}
	}

	// Stop rate limiter cleanup worker
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Wait for all goroutines to finish
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All servers stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("Shutdown timeout exceeded, forcing stop")
	}

	close(s.shutdownCh)
	s.logger.Info("Daemon shutdown complete")

	return nil
}

// WaitForShutdown blocks until the daemon is shut down
func (s *Server) WaitForShutdown() {
	<-s.shutdownCh
}

// SetupSignalHandler sets up signal handling for graceful shutdown
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}

// RESTServer returns the REST server instance
func (s *Server) RESTServer() *rest.Server {
	return s.restServer
}

// HealthChecker returns the daemon's health checker
func (s *Server) HealthChecker() *health.Checker {
	return s.healthChecker
}

// Logger returns the daemon's logger
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
