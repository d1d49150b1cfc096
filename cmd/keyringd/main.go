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

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremyhahn/go-keyutils/internal/config"
	"github.com/jeremyhahn/go-keyutils/internal/server"
)

const defaultConfigPath = "/etc/keyutils/config.yaml"

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("keyringd - go-keyutils daemon\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("KEYUTILS_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	slog.Info("Starting keyringd",
		"config", *configPath,
		"version", version)

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Configuration loaded successfully",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"default_keyring", cfg.Keyring.Default)

	// Create daemon
	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create daemon", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup signal handler for graceful shutdown
	shutdownCtx := server.SetupSignalHandler()

	// Reload configuration on SIGHUP
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			newCfg, err := loadConfig(*configPath)
			if err != nil {
				slog.Error("Reload failed, keeping previous configuration", slog.Any("error", err))
				continue
			}
			if err := srv.Reload(newCfg); err != nil {
				slog.Error("Reload failed", slog.Any("error", err))
			}
		}
	}()

	// Start the daemon
	if err := srv.Start(); err != nil {
		slog.Error("Failed to start daemon", slog.Any("error", err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-shutdownCtx.Done()

	// Gracefully shutdown
	if err := srv.Shutdown(); err != nil {
		slog.Error("Error during shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Daemon stopped successfully")
}

// loadConfig reads the configuration file. A missing file at the
// default path runs the daemon on built-in defaults; a missing file
// named explicitly is an error.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		slog.Info("No configuration file found, using defaults", "path", path)
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
