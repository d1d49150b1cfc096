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
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// showLinksMax bounds each listing read during a recursive show
const showLinksMax = 4096

// newringCmd creates a nested keyring
var newringCmd = &cobra.Command{
	Use:   "newring <description>",
	Short: "Create a keyring inside the target keyring",
	Long: `Create a new keyring with the given description, linked into the
target keyring, and print its serial number.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		ring, err := cfg.TargetKeyring(true)
		if err != nil {
			handleError(err)
			return
		}

		child, err := ring.CreateKeyring(args[0])
		if err != nil {
			handleError(fmt.Errorf("failed to create keyring: %w", err))
			return
		}

		if err := printer.PrintSerial(child.ID()); err != nil {
			handleError(err)
		}
	},
}

// searchCmd searches the target keyring tree
var searchCmd = &cobra.Command{
	Use:   "search <description>",
	Short: "Search the target keyring for a user key",
	Long: `Search the target keyring and the keyrings nested below it for a
user key with exactly the given description and print its serial
number. The kernel walks the tree breadth-first and honors search
permission on every keyring it descends into.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		ring, err := cfg.TargetKeyring(false)
		if err != nil {
			handleError(err)
			return
		}

		printVerbose("Searching keyring %d for %q", ring.ID(), args[0])

		key, err := ring.Search(args[0])
		if err != nil {
			handleError(fmt.Errorf("search failed: %w", err))
			return
		}

		if err := printer.PrintSerial(key.ID()); err != nil {
			handleError(err)
		}
	},
}

// listCmd lists the links of a keyring
var listCmd = &cobra.Command{
	Use:   "list [keyring]",
	Short: "List the keys linked into a keyring",
	Long: `List the keys and keyrings linked into a keyring. Without an
argument the target keyring is listed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		ref := cfg.Keyring
		if len(args) == 1 {
			ref = args[0]
		}

		ring, err := resolveKeyring(ref, false)
		if err != nil {
			handleError(err)
			return
		}

		max, _ := cmd.Flags().GetInt("max")
		links, err := ring.Links(max)
		if err != nil {
			handleError(fmt.Errorf("failed to list keyring: %w", err))
			return
		}

		if err := printer.PrintLinkList(ring.ID(), links.Nodes()); err != nil {
			handleError(err)
		}
	},
}

// showCmd prints a keyring tree recursively
var showCmd = &cobra.Command{
	Use:   "show [keyring]",
	Short: "Show a keyring tree recursively",
	Long: `Print a keyring and everything linked below it as an indented tree.
Without an argument the target keyring is shown. Keyrings appearing
more than once are descended into only the first time.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		ref := cfg.Keyring
		if len(args) == 1 {
			ref = args[0]
		}

		ring, err := resolveKeyring(ref, false)
		if err != nil {
			handleError(err)
			return
		}

		meta, err := ring.Metadata()
		if err != nil {
			handleError(fmt.Errorf("failed to read keyring: %w", err))
			return
		}

		entries := []TreeEntry{{
			Depth:       0,
			ID:          ring.ID(),
			Kind:        string(keyring.LinkKindKeyring),
			Type:        string(meta.Type),
			Description: meta.Description,
		}}
		seen := map[types.ID]bool{}
		walkKeyring(ring, 1, seen, &entries)

		if err := printer.PrintTree(entries); err != nil {
			handleError(err)
		}
	},
}

// walkKeyring appends the links of ring to entries, descending into
// nested keyrings. Keyrings already seen and children that cannot be
// listed are skipped.
func walkKeyring(ring keyring.Keyring, depth int, seen map[types.ID]bool, entries *[]TreeEntry) {
	if seen[ring.ID()] {
		return
	}
	seen[ring.ID()] = true

	links, err := ring.Links(showLinksMax)
	if err != nil {
		return
	}

	for _, node := range links.Nodes() {
		meta := node.Metadata()
		*entries = append(*entries, TreeEntry{
			Depth:       depth,
			ID:          node.ID(),
			Kind:        string(node.Kind()),
			Type:        string(meta.Type),
			Description: meta.Description,
		})
		if child, ok := node.AsKeyring(); ok {
			walkKeyring(child, depth+1, seen, entries)
		}
	}
}

// linkCmd links a key into a keyring
var linkCmd = &cobra.Command{
	Use:   "link <key> <keyring>",
	Short: "Link a key into a keyring",
	Long: `Link a key into a keyring. A key holding a link to a keyring that
would reach itself is refused by the kernel, as is nesting deeper
than the kernel's keyring depth limit.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		ring, err := resolveKeyring(args[1], true)
		if err != nil {
			handleError(err)
			return
		}

		if err := ring.LinkKey(key); err != nil {
			handleError(fmt.Errorf("failed to link key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Linked key %d into keyring %d", key.ID(), ring.ID())); err != nil {
			handleError(err)
		}
	},
}

// unlinkCmd removes a key link from a keyring
var unlinkCmd = &cobra.Command{
	Use:   "unlink <key> [keyring]",
	Short: "Unlink a key from a keyring",
	Long: `Remove the link to a key from a keyring. Without a keyring argument
the target keyring is used. The key itself is garbage collected once
its last link is gone.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		key, err := resolveKey(args[0])
		if err != nil {
			handleError(err)
			return
		}

		ref := cfg.Keyring
		if len(args) == 2 {
			ref = args[1]
		}

		ring, err := resolveKeyring(ref, false)
		if err != nil {
			handleError(err)
			return
		}

		if err := ring.UnlinkKey(key); err != nil {
			handleError(fmt.Errorf("failed to unlink key: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Unlinked key %d from keyring %d", key.ID(), ring.ID())); err != nil {
			handleError(err)
		}
	},
}

// clearCmd empties a keyring
var clearCmd = &cobra.Command{
	Use:   "clear [keyring]",
	Short: "Remove every link from a keyring",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		ref := cfg.Keyring
		if len(args) == 1 {
			ref = args[0]
		}

		ring, err := resolveKeyring(ref, true)
		if err != nil {
			handleError(err)
			return
		}

		if err := ring.Clear(); err != nil {
			handleError(fmt.Errorf("failed to clear keyring: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("Cleared keyring %d", ring.ID())); err != nil {
			handleError(err)
		}
	},
}

// resolveCmd resolves a keyring reference to its real serial
var resolveCmd = &cobra.Command{
	Use:   "resolve <keyring>",
	Short: "Resolve a keyring reference to its serial number",
	Long: `Resolve a special keyring alias to the real serial number of the
keyring it names in the calling context. With --create a per-context
keyring that does not exist yet is created; without it an
uninstantiated keyring is an error. A decimal serial resolves to
itself if the key exists.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		create, _ := cmd.Flags().GetBool("create")

		ring, err := resolveKeyring(args[0], create)
		if err != nil {
			handleError(err)
			return
		}

		// A plain serial round-trips unchanged; confirm it names a live
		// key before echoing it back
		if _, err := types.ParseSpecialID(args[0]); err != nil {
			if _, err := ring.Metadata(); err != nil {
				handleError(err)
				return
			}
		}

		if err := printer.PrintSerial(ring.ID()); err != nil {
			handleError(err)
		}
	},
}

// persistentCmd acquires the calling user's persistent keyring
var persistentCmd = &cobra.Command{
	Use:   "persistent",
	Short: "Acquire the calling user's persistent keyring",
	Long: `Acquire the calling user's persistent keyring, creating it on first
use, link it into the target keyring and print its serial number.
Acquisition resets the keyring's expiry clock. The target must be a
special keyring alias.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		spec, err := types.ParseSpecialID(cfg.Keyring)
		if err != nil {
			handleError(fmt.Errorf("persistent keyring must be linked into a special keyring, got %q", cfg.Keyring))
			return
		}

		ring, err := keyring.GetPersistent(spec)
		if err != nil {
			handleError(fmt.Errorf("failed to acquire persistent keyring: %w", err))
			return
		}

		if err := printer.PrintSerial(ring.ID()); err != nil {
			handleError(err)
		}
	},
}

// sessionCmd joins a session keyring, optionally running a command
// inside it
var sessionCmd = &cobra.Command{
	Use:   "session [name] [command [args...]]",
	Short: "Join a new session keyring",
	Long: `Replace the session keyring with a named one, creating it if
needed, and print its serial number. A name of "-" or no name joins
a fresh anonymous session. If a command is given it runs inside the
new session and its exit status is propagated.`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		name := ""
		if len(args) > 0 && args[0] != "-" {
			name = args[0]
		}

		ring, err := keyring.JoinSession(name)
		if err != nil {
			handleError(fmt.Errorf("failed to join session keyring: %w", err))
			return
		}

		printVerbose("Joined session keyring %d", ring.ID())

		if len(args) > 1 {
			child := exec.Command(args[1], args[2:]...)
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			if err := child.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					os.Exit(exitErr.ExitCode())
				}
				handleError(err)
			}
			return
		}

		if err := printer.PrintSerial(ring.ID()); err != nil {
			handleError(err)
		}
	},
}

func init() {
	listCmd.Flags().Int("max", 512,
		"maximum number of links to list")
	resolveCmd.Flags().Bool("create", false,
		"create the keyring if it does not exist")
}
