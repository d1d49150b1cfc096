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

package cli

import (
	"io"
	"os"

	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// Config holds global CLI configuration
type Config struct {
	// Keyring is the target keyring reference, a special alias or a
	// decimal serial number
	Keyring string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Keyring:      "@s",
		OutputFormat: "text",
		Verbose:      false,
	}
}

// TargetKeyring resolves the configured target keyring. Commands that
// mutate the target pass create so a per-context keyring instantiates
// on first use, the same lookup the syscall they wrap performs.
func (c *Config) TargetKeyring(create bool) (keyring.Keyring, error) {
	return resolveKeyring(c.Keyring, create)
}

// resolveKeyring turns a keyring reference into a handle
func resolveKeyring(ref string, create bool) (keyring.Keyring, error) {
	if spec, err := types.ParseSpecialID(ref); err == nil {
		return keyring.FromSpecial(spec, create)
	}
	id, err := types.ParseID(ref)
	if err != nil {
		return keyring.Keyring{}, err
	}
	return keyring.FromID(id)
}

// resolveKey turns a key reference into a handle. Special aliases are
// accepted because a keyring is itself a key; the kernel resolves the
// alias when the wrapped syscall runs.
func resolveKey(ref string) (keyring.Key, error) {
	id, err := types.ParseKeyRef(ref)
	if err != nil {
		return keyring.Key{}, err
	}
	return keyring.KeyFromID(id)
}

// readPayload returns the payload for add, update and instantiate
// commands. The argument "-" reads the payload from stdin verbatim,
// anything else is taken literally.
func readPayload(arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	return io.ReadAll(os.Stdin)
}
