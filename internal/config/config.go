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

// Package config loads and validates the keyringd daemon configuration
// from YAML, with KEYUTILS_ environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// Config represents the complete daemon configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	TLS       TLSConfig       `yaml:"tls"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
	CORS      CORSConfig      `yaml:"cors"`
	Keyring   KeyringConfig   `yaml:"keyring"`
}

// ServerConfig contains the REST listener settings. Timeouts are in
// seconds.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     int    `yaml:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"`
}

// TLSConfig controls TLS for the REST listener
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig controls logging behavior. Output is "stderr", "stdout"
// or a file path; empty means stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RateLimitConfig controls per-client rate limiting on the REST API
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the health probe endpoints
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CORSConfig controls cross-origin access to the REST API
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// KeyringConfig contains kernel keyring settings. Default names the
// keyring operations target when a request names none; it accepts the
// special keyring aliases (@s, @u, ...) or a decimal serial. Tracked
// lists keyrings whose link counts are exported as gauges, sampled
// every TrackInterval seconds.
type KeyringConfig struct {
	Default       string   `yaml:"default"`
	SessionName   string   `yaml:"session_name"`
	Tracked       []string `yaml:"tracked"`
	TrackInterval int      `yaml:"track_interval"`
}

// DefaultConfig returns the configuration the daemon runs with when no
// config file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8443,
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 600,
			Burst:          100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/healthz",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Keyring: KeyringConfig{
			Default:       "@s",
			TrackInterval: 30,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. Settings absent from the file keep their
// DefaultConfig values.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("KEYUTILS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portEnv := os.Getenv("KEYUTILS_PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			log.Printf("Warning: invalid KEYUTILS_PORT value %q, using default %d: %v",
				portEnv, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid KEYUTILS_PORT value %q (out of range 1-65535), using default %d",
				portEnv, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}
	if level := os.Getenv("KEYUTILS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("KEYUTILS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if ring := os.Getenv("KEYUTILS_DEFAULT_KEYRING"); ring != "" {
		cfg.Keyring.Default = ring
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 ||
		c.Server.IdleTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit burst must not be negative")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}
	if c.Health.Enabled && !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health path must start with /: %q", c.Health.Path)
	}

	if _, err := types.ParseKeyRef(c.Keyring.Default); err != nil {
		return fmt.Errorf("invalid default keyring %q: %w", c.Keyring.Default, err)
	}
	for _, ring := range c.Keyring.Tracked {
		if _, err := types.ParseKeyRef(ring); err != nil {
			return fmt.Errorf("invalid tracked keyring %q: %w", ring, err)
		}
	}
	if len(c.Keyring.Tracked) > 0 && c.Keyring.TrackInterval < 1 {
		return fmt.Errorf("keyring track_interval must be positive when keyrings are tracked")
	}

	return nil
}

// DefaultKeyring returns the configured default keyring reference as a
// serial-number placeholder.
func (c *Config) DefaultKeyring() types.ID {
	id, err := types.ParseKeyRef(c.Keyring.Default)
	if err != nil {
		// Validate rejects unparseable values; fall back to the session
		// keyring for zero-value Configs that skipped validation.
		return types.KeyringSession.ID()
	}
	return id
}
