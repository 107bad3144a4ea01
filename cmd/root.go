package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"learningTrackerAPI/internal/authstate"
	"learningTrackerAPI/internal/client"
	"learningTrackerAPI/internal/config"
	"learningTrackerAPI/internal/localstore"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/ui"
)

var (
	cfgFile    string
	baseURL    string
	jsonOutput bool
	appConfig  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "learningtracker",
	Short: "Track what you learn, one entry per day",
	Long:  "learningtracker runs the Learning Tracker API server and talks to it from the terminal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			// Non-TTY: print today's entry instead of the calendar.
			return showRun(cmd, "")
		}

		a, err := newApp(appConfig, true)
		if err != nil {
			return err
		}
		defer a.Close()

		return ui.Run(cmd.Context(), a.ctrl, ui.DefaultTheme(), a.auth)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Silence Cobra's built-in error and usage printing so we control stderr output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// app bundles the client-side pieces shared by the terminal commands.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	state  *localstore.Store
	client *client.Client
	auth   *authstate.Holder
	ctrl   *ui.Controller
}

// newApp wires the REST client, its persisted state and the view controller.
// Interactive sessions log to a file in the state dir so output does not
// tear the screen.
func newApp(cfg *config.Config, interactive bool) (*app, error) {
	state, err := localstore.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening local state: %w", err)
	}

	var log logger.Logger
	if interactive {
		logPath := filepath.Join(cfg.StateDir, "learningtracker.log")
		log, err = logger.NewWith(func(zc *zap.Config) {
			zc.OutputPaths = []string{logPath}
			zc.ErrorOutputPaths = []string{logPath}
		})
	} else {
		log, err = logger.NewConsole(cfg.LogLevel)
	}
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	c, err := client.New(client.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.ClientTimeout,
		Store:   state,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	auth := authstate.New(state, log)
	return &app{
		cfg:    cfg,
		log:    log,
		state:  state,
		client: c,
		auth:   auth,
		ctrl:   ui.NewController(c, auth, log),
	}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
}
