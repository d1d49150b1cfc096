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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// addCmd adds a user key to the target keyring
var addCmd = &cobra.Command{
	Use:   "add <description> <payload>",
	Short: "Add a user key to the target keyring",
	Long: `Add a key of type "user" carrying the given payload to the target
keyring and print its serial number. A payload of "-" is read from
stdin. If the keyring already holds a user key with the same
description, the key is updated in place and keeps its serial.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		payload, err := readPayload(args[1])
		if err != nil {
			handleError(fmt.Errorf("failed to read payload: %w", err))
			return
		}

		ring, err := cfg.TargetKeyring(true)
		if err != nil {
			handleError(err)
			return
		}

		printVerbose("Adding key %q to keyring %d", args[0], ring.ID())

		key, err := ring.AddKey(args[0], payload)
		if err != nil {
			handleError(fmt.Errorf("failed to add key: %w", err))
			return
		}

		if err := printer.PrintSerial(key.ID()); err != nil {
			handleError(err)
		}
	},
}

// requestCmd looks up a key, upcalling to user space when allowed
var requestCmd = &cobra.Command{
	Use:   "request <description>",
	Short: "Request a user key by description",
	Long: `Search the calling process's keyrings for a user key with the given
description and print its serial number. With --callout the kernel
may invoke the request-key upcall to construct a missing key; without
it a missing key is an error. The found key is linked into the target
keyring.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		callout, _ := cmd.Flags().GetString("callout")

		ring, err := cfg.TargetKeyring(true)
		if err != nil {
			handleError(err)
			return
		}

		var key keyring.Key
		if cmd.Flags().Changed("callout") {
			key, err = ring.RequestKeyWithCallout(args[0], callout)
		} else {
			key, err = ring.RequestKey(args[0])
		}
		if err != nil {
			handleError(fmt.Errorf("failed to request key: %w", err))
			return
		}

		if err := printer.PrintSerial(key.ID()); err != nil {
			handleError(err)
		}
	},
}

// readCmd reads a key payload
var readCmd = &cobra.Command{
	Use:   "read <key>",
	Short: "Read a key's payload",
	Long: `Read the payload of a key and print it. Printable payloads are
printed verbatim, binary payloads are hex-encoded with a ":hex:"
prefix. Use pipe for raw bytes.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		data, err := key.Read()
		if err != nil {
			handleError(fmt.Errorf("failed to read key: %w", err))
			return
		}

		if err := printer.PrintPayload(data); err != nil {
			handleError(err)
		}
	},
}

// pipeCmd writes a key payload to stdout unmodified
var pipeCmd = &cobra.Command{
	Use:   "pipe <key>",
	Short: "Write a key's raw payload to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		data, err := key.Read()
		if err != nil {
			handleError(fmt.Errorf("failed to read key: %w", err))
			return
		}

		if _, err := os.Stdout.Write(data); err != nil {
			handleError(err)
		}
	},
}

// updateCmd replaces a key payload
var updateCmd = &cobra.Command{
	Use:   "update <key> <payload>",
	Short: "Replace a key's payload",
	Long: `Replace the payload of an existing key. A payload of "-" is read
from stdin. The key keeps its serial number, ownership and
permissions.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		payload, err := readPayload(args[1])
		if err != nil {
			handleError(fmt.Errorf("failed to read payload: %w", err))
			return
		}

		if err := key.Update(payload); err != nil {
			handleError(fmt.Errorf("failed to update key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Updated key %d", key.ID())); err != nil {
			handleError(err)
		}
	},
}

// describeCmd prints key metadata
var describeCmd = &cobra.Command{
	Use:   "describe <key>",
	Short: "Print a key's metadata",
	Long: `Print the type, ownership, permissions and description of a key.
With --raw the kernel describe string is printed unparsed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			desc, err := key.Describe()
			if err != nil {
				handleError(fmt.Errorf("failed to describe key: %w", err))
				return
			}
			if err := printer.PrintDescribe(desc); err != nil {
				handleError(err)
			}
			return
		}

		meta, err := key.Metadata()
		if err != nil {
			handleError(fmt.Errorf("failed to describe key: %w", err))
			return
		}

		if err := printer.PrintKeyInfo(key.ID(), meta); err != nil {
			handleError(err)
		}
	},
}

// revokeCmd revokes a key
var revokeCmd = &cobra.Command{
	Use:   "revoke <key>",
	Short: "Revoke a key",
	Long: `Revoke a key. The key remains linked but every further operation on
it fails until it is garbage collected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		if err := key.Revoke(); err != nil {
			handleError(fmt.Errorf("failed to revoke key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Revoked key %d", key.ID())); err != nil {
			handleError(err)
		}
	},
}

// invalidateCmd invalidates a key
var invalidateCmd = &cobra.Command{
	Use:   "invalidate <key>",
	Short: "Invalidate a key",
	Long: `Invalidate a key, scheduling its immediate removal from all
keyrings. Unlike revocation the key disappears rather than lingering
in an unusable state.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		if err := key.Invalidate(); err != nil {
			handleError(fmt.Errorf("failed to invalidate key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Invalidated key %d", key.ID())); err != nil {
			handleError(err)
		}
	},
}

// timeoutCmd sets or clears a key expiry
var timeoutCmd = &cobra.Command{
	Use:   "timeout <key> <seconds>",
	Short: "Set a key's expiry timeout",
	Long: `Set the expiry timeout on a key in seconds from now. A timeout of 0
cancels any existing expiry.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 0 {
			handleError(fmt.Errorf("invalid timeout %q: must be a non-negative number of seconds", args[1]))
			return
		}

		if err := key.SetTimeout(time.Duration(seconds) * time.Second); err != nil {
			handleError(fmt.Errorf("failed to set timeout: %w", err))
			return
		}

		if seconds == 0 {
			err = printer.PrintSuccess(fmt.Sprintf("Cleared timeout on key %d", key.ID()))
		} else {
			err = printer.PrintSuccess(fmt.Sprintf("Key %d expires in %ds", key.ID(), seconds))
		}
		if err != nil {
			handleError(err)
		}
	},
}

// setpermCmd changes a key's permission mask
var setpermCmd = &cobra.Command{
	Use:   "setperm <key> <mask>",
	Short: "Set a key's permission mask",
	Long: `Set the permission mask of a key. The mask is given in hex, with or
without a 0x prefix, and packs the possessor, user, group and other
permission bands, for example 0x3f3f0000.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		perm, err := types.ParsePermissions(args[1])
		if err != nil {
			handleError(err)
			return
		}

		if err := key.SetPermissions(perm); err != nil {
			handleError(fmt.Errorf("failed to set permissions: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Set permissions 0x%08x on key %d", perm.Mask(), key.ID())); err != nil {
			handleError(err)
		}
	},
}

// chownCmd changes a key's ownership
var chownCmd = &cobra.Command{
	Use:   "chown <key> <uid> <gid>",
	Short: "Change a key's owner and group",
	Long: `Change the user and group ownership of a key. Passing -1 for either
value leaves it unchanged. Changing ownership requires appropriate
privileges.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		uid, err := strconv.Atoi(args[1])
		if err != nil {
			handleError(fmt.Errorf("invalid uid %q", args[1]))
			return
		}
		gid, err := strconv.Atoi(args[2])
		if err != nil {
			handleError(fmt.Errorf("invalid gid %q", args[2]))
			return
		}

		if err := key.Chown(uid, gid); err != nil {
			handleError(fmt.Errorf("failed to change ownership: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Changed ownership of key %d", key.ID())); err != nil {
			handleError(err)
		}
	},
}

// instantiateCmd instantiates a key under construction. It is meant to
// be run from a request-key(8) handler, which holds the instantiation
// authority for the key.
var instantiateCmd = &cobra.Command{
	Use:   "instantiate <key> <payload> <keyring>",
	Short: "Instantiate a key under construction",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		payload, err := readPayload(args[1])
		if err != nil {
			handleError(fmt.Errorf("failed to read payload: %w", err))
			return
		}

		ring, err := resolveKeyring(args[2], true)
		if err != nil {
			handleError(err)
			return
		}

		if err := keyring.AssumeAuthority(key.ID()); err != nil {
			handleError(fmt.Errorf("failed to assume authority: %w", err))
			return
		}

		if err := key.Instantiate(payload, ring); err != nil {
			handleError(fmt.Errorf("failed to instantiate key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Instantiated key %d", key.ID())); err != nil {
			handleError(err)
		}
	},
}

// negateCmd negatively instantiates a key under construction
var negateCmd = &cobra.Command{
	Use:   "negate <key> <seconds> <keyring>",
	Short: "Negatively instantiate a key under construction",
	Long: `Mark a key under construction as negative for the given number of
seconds. Searches finding the key fail with a rejection until the
negative entry expires. Meant to be run from a request-key(8)
handler.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 1 {
			handleError(fmt.Errorf("invalid timeout %q: must be a positive number of seconds", args[1]))
			return
		}

		ring, err := resolveKeyring(args[2], true)
		if err != nil {
			handleError(err)
			return
		}

		if err := keyring.AssumeAuthority(key.ID()); err != nil {
			handleError(fmt.Errorf("failed to assume authority: %w", err))
			return
		}

		if err := key.Negate(time.Duration(seconds)*time.Second, ring); err != nil {
			handleError(fmt.Errorf("failed to negate key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Negated key %d for %ds", key.ID(), seconds)); err != nil {
			handleError(err)
		}
	},
}

func init() {
	requestCmd.Flags().String("callout", "",
		"callout info passed to the request-key handler")
	describeCmd.Flags().Bool("raw", false,
		"print the raw kernel describe string")
}
