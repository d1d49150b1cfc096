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

// Package logging bootstraps the process-wide slog logger from
// configuration. The CLI and the server both build their logger here
// and hand it to the adapters/logger package for structured use.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats supported by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls how the process logger is constructed.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn or error.
	// An empty level means info.
	Level string

	// Format selects the handler encoding, text or json. An empty
	// format means text.
	Format string

	// Output receives the log stream. Nil means os.Stderr.
	Output io.Writer

	// AddSource annotates records with the file and line of the
	// logging call.
	AddSource bool
}

// New builds a slog.Logger from the configuration. Unknown levels and
// formats are rejected rather than silently defaulted so a typo in a
// config file surfaces at startup.
func New(config Config) (*slog.Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "", FormatText:
		handler = slog.NewTextHandler(output, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a configuration string to a slog level. The empty
// string maps to info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Default returns a text logger writing to stderr at info level. It is
// the logger used before configuration has been loaded.
func Default() *slog.Logger {
	logger, _ := New(Config{})
	return logger
}
