// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"qms/cli/internal/backend"
	"qms/cli/internal/httpclient"
	"qms/cli/internal/httperrors"
)

var (
	capaSkip  int
	capaLimit int
)

// capaCmd groups read-only CAPA commands that use the stored session.
var capaCmd = &cobra.Command{
	Use:   "capa",
	Short: "Read corrective and preventive action records",
}

var capaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List CAPA records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !current.session.IsAuthenticated() {
			printNotLoggedIn()
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		items, err := current.api.ListCAPAs(ctx, capaSkip, capaLimit)
		if err != nil {
			return apiError(err, "listing CAPAs")
		}
		if len(items) == 0 {
			pterm.Println("No CAPA records found.")
			return nil
		}
		return renderCAPATable(items)
	},
}

var capaGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one CAPA record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid CAPA id %q", args[0])
		}
		if !current.session.IsAuthenticated() {
			printNotLoggedIn()
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		c, err := current.api.GetCAPA(ctx, id)
		if err != nil {
			return apiError(err, "fetching CAPA "+args[0])
		}
		renderCAPA(c)
		return nil
	},
}

func init() {
	capaListCmd.Flags().IntVar(&capaSkip, "skip", 0, "Number of records to skip")
	capaListCmd.Flags().IntVar(&capaLimit, "limit", 100, "Maximum number of records to return")
	capaCmd.AddCommand(capaListCmd, capaGetCmd)
	rootCmd.AddCommand(capaCmd)
}

// apiError reports err and, for a rejected token, notes that the session was cleared.
func apiError(err error, action string) error {
	err = httperrors.FormatNetworkError(err, action)
	if httpclient.IsUnauthorized(err) {
		pterm.Println("   The stored session was removed. Run 'qms login' to sign in again.")
	}
	return err
}

func renderCAPATable(items []backend.CAPA) error {
	data := pterm.TableData{{"ID", "Title", "Type", "Status", "Due"}}
	for _, c := range items {
		data = append(data, []string{
			strconv.FormatInt(c.ID, 10),
			c.Title,
			c.Type,
			c.Status,
			formatDate(c.DueDate),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderCAPA(c *backend.CAPADetails) {
	pterm.DefaultSection.Printf("CAPA #%d: %s", c.ID, c.Title)
	pterm.Printf("Type:     %s\n", c.Type)
	pterm.Printf("Status:   %s\n", c.Status)
	pterm.Printf("Due:      %s\n", formatDate(c.DueDate))
	if c.Assignee.Username != "" {
		name := c.Assignee.FullName
		if name == "" {
			name = c.Assignee.Username
		}
		pterm.Printf("Assignee: %s <%s>\n", name, c.Assignee.Email)
	}
	for _, f := range []struct{ label, value string }{
		{"Description", c.Description},
		{"Root cause", c.RootCause},
		{"Immediate action", c.ImmediateAction},
		{"Corrective action", c.CorrectiveAction},
		{"Preventive action", c.PreventiveAction},
	} {
		if f.value != "" {
			pterm.Printf("\n%s:\n  %s\n", f.label, f.value)
		}
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}
