// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd clears the stored session.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Long: `The logout command removes the stored token and user record and stops sending
the bearer token. It only touches local state and succeeds even when no session
is stored.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		current.session.Logout()
		fmt.Println("✅ Session removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
