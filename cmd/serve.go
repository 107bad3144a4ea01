package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"learningTrackerAPI/internal/config"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/server"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/store/libsql"
	"learningTrackerAPI/internal/store/memory"
	"learningTrackerAPI/internal/store/postgres"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long:  "Serve the Learning Tracker API, the calendar page, health, metrics and profiling endpoints.",
	Example: `  learningtracker serve
  STORAGE=postgres DATABASE_URL=postgres://... learningtracker serve --port 8000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			appConfig.Port = servePort
		}

		log, err := logger.New(appConfig.LogLevel)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, appConfig)
		if err != nil {
			return err
		}
		defer st.Close()
		log.Infow("Storage ready", "backend", appConfig.Storage)

		key, generated, err := appConfig.CSRFAuthKey()
		if err != nil {
			return err
		}
		if generated {
			log.Warn("CSRF_KEY is not set; using a random key, tokens will not survive a restart")
		}

		srv := server.New(appConfig, st, key, log)

		bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.BootstrapSuperuser(bootCtx); err != nil {
			return err
		}

		return srv.Run(ctx)
	},
}

// openStore opens the backend selected by cfg.Storage.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StoragePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := postgres.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing postgres storage: %w", err)
		}
		return st, nil
	case config.StorageLibSQL:
		st, err := libsql.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initializing libsql storage: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage)
	}
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}
