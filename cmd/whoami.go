// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// whoamiCmd shows the stored session without contacting the backend.
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"me"},
	Short:   "Show the current session",
	Long: `The whoami command displays the locally stored session: the user record
returned at login and, when the token is a JWT, its subject and expiry.

No request is made; use 'qms capa list' to check the session against the backend.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		s := current.session.Snapshot()
		if !s.IsAuthenticated() {
			printNotLoggedIn()
			return nil
		}

		pterm.Printf("👤 Current user: %s\n", displayName(s))
		if p, err := s.User.Profile(); err == nil {
			if p.Email != "" {
				pterm.Printf("   Email: %s\n", p.Email)
			}
			if p.Role != "" {
				pterm.Printf("   Role:  %s\n", p.Role)
			}
		}
		if c, err := current.session.TokenClaims(); err == nil && !c.ExpiresAt.IsZero() {
			if c.Expired(time.Now()) {
				pterm.Warning.Printf("Token expired at %s; the next request will end the session\n", c.ExpiresAt.Local().Format(time.RFC1123))
			} else {
				pterm.Printf("   Token expires: %s\n", c.ExpiresAt.Local().Format(time.RFC1123))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
