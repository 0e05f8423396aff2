// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the QMS CLI.
// It implements subcommands for signing in and out of the QMS backend and for
// reading CAPA records with the stored session, using the Cobra CLI framework.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qms/cli/internal/logging"
)

var (
	showVersion  bool
	flagLogLevel string
	flagStorage  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qms",
	Short: "QMS command-line client",
	Long: `qms signs in to the Quality Management System API, keeps the session in the
OS keychain (or a private state file), and sends it with every request.

The API address comes from REACT_APP_API_URL (host), REACT_APP_API_PORT and
QMS_ENV=production (HTTPS without port).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := setup()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			fmt.Printf("qms %s\n", Version)
			fmt.Printf("api %s\n", current.endpoint.APIURL)
			msg, err := current.api.Status(ctx)
			if err != nil {
				msg = "unreachable"
			}
			fmt.Printf("backend %s\n", msg)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Errors are masked before printing so credentials never reach the terminal.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("Error", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version, API endpoint and backend status")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagStorage, "storage", "", "Session storage backend (keychain or file)")
}
