// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-databox.
//
// go-databox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli implements the databox command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the databox command tree.
func NewRootCmd() *cobra.Command {
	cfg := NewConfig()

	rootCmd := &cobra.Command{
		Use:   "databox",
		Short: "databox - Shamir secret sharing service and tool",
		Long: `databox splits a secret into N shares such that any T of them recover
it and fewer reveal nothing. It runs locally or as a REST, gRPC and
HTTP/3 service.

Supported schemes:
  - p521:  prime field 2^521-1 (default)
  - p1279: prime field 2^1279-1
  - p4253: prime field 2^4253-1
  - gf256: byte-wise GF(2^8) sharing
  - sssa:  SSSaaS compatible shares`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (defaults and DATABOX_* environment when empty)")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(newSplitCmd(cfg))
	rootCmd.AddCommand(newCombineCmd(cfg))
	rootCmd.AddCommand(newSchemesCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newVersionCmd(cfg))

	return rootCmd
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("output")
		handleError(os.Stderr, format, err)
		return err
	}
	return nil
}

// handleError prints an error in the selected output format.
func handleError(w io.Writer, format string, err error) {
	printer := NewPrinter(format, w)
	if perr := printer.PrintError(err); perr != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, cfg *Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
