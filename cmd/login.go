// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"qms/cli/internal/httperrors"
	"qms/cli/internal/session"
	"qms/cli/internal/terminal"
)

var (
	loginUsername string
	loginPassword string
	loginForce    bool
)

// loginCmd exchanges a username and password for a session token.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Sign in to the QMS API and store the session",
	Long: `The login command posts your credentials to the QMS API. On success the returned
token and user record are stored (OS keychain by default) and sent as a bearer token
on every later request. On failure nothing is stored.

Credentials come from --username/--password, then QMS_USERNAME/QMS_PASSWORD, and
finally an interactive prompt when stdin is a terminal.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if current.session.IsAuthenticated() && !loginForce {
			fmt.Printf("Already logged in as %s\n", displayName(current.session.Snapshot()))
			fmt.Println("Use 'qms login --force' to sign in again.")
			return nil
		}

		username, password, err := resolveCredentials(loginUsername, loginPassword, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		return runLogin(ctx, current, username, password, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (or set QMS_USERNAME)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (or set QMS_PASSWORD, will prompt if not provided)")
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in again even if a session is stored")
}

// runLogin performs the login and reports the outcome on w.
func runLogin(ctx context.Context, a *app, username, password string, w io.Writer) error {
	stop := startInlineSpinner(w, "Signing in to "+a.endpoint.APIURL, spinnerFrames, 120*time.Millisecond)
	err := a.session.Login(ctx, username, password)
	stop()
	if err != nil {
		return httperrors.FormatNetworkError(err, "logging in")
	}

	fmt.Fprintf(w, "✅ Logged in as %s\n", displayName(a.session.Snapshot()))
	if p, err := a.session.User().Profile(); err == nil && p.Role != "" {
		fmt.Fprintf(w, "   Role: %s\n", p.Role)
	}
	return nil
}

// resolveCredentials applies flag, environment, then prompt precedence.
func resolveCredentials(username, password string, in *os.File, out io.Writer) (string, string, error) {
	if username == "" {
		username = os.Getenv("QMS_USERNAME")
	}
	if password == "" {
		password = os.Getenv("QMS_PASSWORD")
	}

	interactive := in != nil && term.IsTerminal(int(in.Fd()))
	promptLines := 0
	if username == "" {
		if !interactive {
			return "", "", fmt.Errorf("username is required in non-interactive mode (use --username or QMS_USERNAME)")
		}
		fmt.Fprint(out, "Username: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
		promptLines += terminal.LinesFor(len("Username: ")+len(username), terminal.Width(int(in.Fd())))
	}
	if password == "" {
		if !interactive {
			return "", "", fmt.Errorf("password is required in non-interactive mode (use --password or QMS_PASSWORD)")
		}
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
		promptLines++
	}
	if promptLines > 0 {
		// Remove the prompts; the trailing newline leaves the cursor one row below.
		terminal.ClearLines(out, promptLines+1)
	}
	return username, password, nil
}

// displayName picks a readable identifier for the session's user.
func displayName(s session.Session) string {
	if p, err := s.User.Profile(); err == nil {
		if name := p.DisplayName(); name != "" {
			return name
		}
	}
	if c, err := session.ParseClaims(s.Token); err == nil && c.Subject != "" {
		return c.Subject
	}
	return "user"
}

// printNotLoggedIn is the shared hint for commands that need a session.
func printNotLoggedIn() {
	pterm.Println("🔒 You're not logged in yet!")
	pterm.Println("   Run 'qms login' to get started.")
}
