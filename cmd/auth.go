package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in to the API",
	Long:  "Obtain a CSRF token, log in and remember the session for later commands.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		username := ""
		if len(args) == 1 {
			username = args[0]
		} else if username, err = p.Line("Username: "); err != nil {
			return err
		}
		username = strings.TrimSpace(username)

		password := loginPassword
		if password == "" && username != "" {
			if password, err = p.Password("Password: "); err != nil {
				return err
			}
		}

		return loginRun(cmd, a, username, password)
	},
}

func loginRun(cmd *cobra.Command, a *app, username, password string) error {
	if err := a.ctrl.Login(cmd.Context(), username, password); err != nil {
		return errors.New(a.ctrl.LoginError)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged in successfully")
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget it locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		a.ctrl.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server, login state and progress this year",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		state := "logged out"
		if a.auth.IsAuthenticated() {
			state = "logged in"
		}
		fmt.Fprintf(out, "Server:  %s\n", a.cfg.BaseURL)
		fmt.Fprintf(out, "Session: %s\n", state)

		stats, err := a.client.Stats(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "Stats:   unavailable (%v)\n", err)
			return nil
		}
		fmt.Fprintf(out, "Stats:   %d entries over %d days this year\n", stats.Entries, stats.TotalDays)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
}
