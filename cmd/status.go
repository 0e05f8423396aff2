// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"qms/cli/internal/httperrors"
)

// statusCmd reports the resolved endpoint and whether the backend answers.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API endpoint and check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		mode := "development"
		if current.endpoint.IsProd {
			mode = "production"
		}
		pterm.Printf("🌐 API:     %s (%s)\n", current.endpoint.APIURL, mode)
		pterm.Printf("   Host:    %s\n", httperrors.ExtractHostFromURL(current.endpoint.APIURL))
		pterm.Printf("   Storage: %s\n", current.cfg.Storage)
		if current.session.IsAuthenticated() {
			pterm.Printf("   Session: %s\n", displayName(current.session.Snapshot()))
		} else {
			pterm.Println("   Session: none")
		}

		msg, err := current.api.Status(ctx)
		if err != nil {
			return httperrors.FormatNetworkError(err, "checking backend status")
		}
		pterm.Success.Printf("Backend is up: %s\n", msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
