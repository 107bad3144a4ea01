package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"learningTrackerAPI/internal/client"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show what was learned on a day",
	Long:  "Print the entry for a date (YYYY-MM-DD, default today) or the placeholder when there is none.",
	Example: `  learningtracker show
  learningtracker show 2024-03-01 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := ""
		if len(args) == 1 {
			date = args[0]
		}
		return showRun(cmd, date)
	},
}

func showRun(cmd *cobra.Command, date string) error {
	a, err := newApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if date == "" {
		date = a.ctrl.Today()
	}
	description, err := a.ctrl.SelectDate(cmd.Context(), date)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), entry.DescriptionResponse{Description: description})
	}
	ui.FormatEntry(cmd.OutOrStdout(), a.ctrl.Selected, description, ui.PlainTheme())
	return nil
}

var (
	writeDate  string
	writeTopic string
)

var writeCmd = &cobra.Command{
	Use:   "write [description]",
	Short: "Record what you learned",
	Long: `Create or replace the entry for a date. The description is taken from the
arguments, or read from stdin when none are given. Requires login.`,
	Example: `  learningtracker write "Context cancellation propagates to children"
  learningtracker write --date 2024-03-01 --type Python < notes.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.Join(args, " ")
		if len(args) == 0 {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading description: %w", err)
			}
			description = string(b)
		}

		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		date := writeDate
		if date == "" {
			date = a.ctrl.Today()
		}
		if a.client.Cookie(session.CSRFCookieName) == "" {
			a.client.FetchCsrfToken(cmd.Context())
		}

		saved, err := a.ctrl.SaveEntry(cmd.Context(), date, strings.TrimSpace(description), writeTopic)
		if errors.Is(err, ui.ErrNotLoggedIn) {
			return errors.New(ui.MsgLoginRequired)
		}
		if err != nil {
			return apiFailure(err)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), entry.DescriptionResponse{Description: saved})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved entry for %s.\n", date)
		return nil
	},
}

var (
	listDate   string
	listFrom   string
	listTo     string
	listTopic  string
	listSearch string
)

var entriesCmd = &cobra.Command{
	Use:     "entries",
	Aliases: []string{"list", "ls"},
	Short:   "List entries",
	Example: `  learningtracker entries --from 2024-01-01 --to 2024-01-31
  learningtracker entries --type Python --search goroutine`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.client.ListEntries(cmd.Context(), entry.Filter{
			Date:         listDate,
			StartDate:    listFrom,
			EndDate:      listTo,
			LearningType: listTopic,
			Description:  listSearch,
		})
		if err != nil {
			return apiFailure(err)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		ui.FormatEntryList(cmd.OutOrStdout(), entries)
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the learning types an entry can have",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := a.client.Topics(cmd.Context())
		if err != nil {
			return apiFailure(err)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), topics)
		}
		for _, t := range topics {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

var calendarCmd = &cobra.Command{
	Use:   "calendar [YYYY-MM]",
	Short: "Print a month with the days that have entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig, false)
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now()
		year, month := now.Year(), now.Month()
		if len(args) == 1 {
			t, err := time.Parse("2006-01", args[0])
			if err != nil {
				return fmt.Errorf("invalid month %q: use YYYY-MM", args[0])
			}
			year, month = t.Year(), t.Month()
		}

		cal, err := a.ctrl.Month(cmd.Context(), year, month, a.ctrl.Selected)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), cal)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMonth(cal, ui.PlainTheme()))
		return nil
	},
}

// apiFailure turns API errors into the server's message.
func apiFailure(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.Message)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	writeCmd.Flags().StringVar(&writeDate, "date", "", "entry date YYYY-MM-DD (default today)")
	writeCmd.Flags().StringVar(&writeTopic, "type", "", "learning type (see 'topics')")

	entriesCmd.Flags().StringVar(&listDate, "date", "", "exact date")
	entriesCmd.Flags().StringVar(&listFrom, "from", "", "start date, inclusive")
	entriesCmd.Flags().StringVar(&listTo, "to", "", "end date, inclusive")
	entriesCmd.Flags().StringVar(&listTopic, "type", "", "learning type")
	entriesCmd.Flags().StringVar(&listSearch, "search", "", "case-insensitive text in the description")

	rootCmd.AddCommand(showCmd, writeCmd, entriesCmd, topicsCmd, calendarCmd)
}
