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

	"github.com/spf13/cobra"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keyutil",
	Short: "go-keyutils CLI - Linux kernel keyring management tool",
	Long: `keyutil provides a command-line interface to the Linux kernel
keyring facility: adding and requesting keys, searching keyrings,
managing links between keyrings and controlling key lifetime,
ownership and permissions.

Keyrings and keys are named by decimal serial number or by one of
the special keyring aliases:

  @t    thread keyring           @s    session keyring
  @p    process keyring          @us   user-session keyring
  @u    user keyring             @g    group keyring
  @a    assumed request-key authority keyring`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize global config
	globalConfig = NewConfig()

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVarP(&globalConfig.Keyring, "keyring", "k", "@s",
		"target keyring (special alias or serial number)")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(newringCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(pipeCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(persistentCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(timeoutCmd)
	rootCmd.AddCommand(setpermCmd)
	rootCmd.AddCommand(chownCmd)
	rootCmd.AddCommand(instantiateCmd)
	rootCmd.AddCommand(negateCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
