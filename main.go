package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"digest_server/adapter/out/persistence"
	"digest_server/config"
	"digest_server/core/domain"
	"digest_server/infra/database"
	"digest_server/internal/bootstrap"
	"digest_server/internal/seed"
	"digest_server/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digest",
		Short:         "Email ingestion, AI summarization and export service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if exists (for local development)
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newIngestCmd())
	return root
}

// loadConfig reads configuration and initializes the default logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return nil, err
	}
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "digest",
		Pretty:  cfg.IsDevelopment(),
	})
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateAI(); err != nil {
				logger.Error("Invalid configuration: %v", err)
				return err
			}
			return runAPI(cmd.Context(), cfg)
		},
	}
}

func runAPI(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize API: %w", err)
	}
	defer cleanup()

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("Starting API server on %s", addr)
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error shutting down: %v", err)
		return err
	}
	logger.Info("API server shut down gracefully")
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the emails table and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dialect, ok := bootstrap.Dialect(cfg)
			if !ok {
				return fmt.Errorf("driver %q has no schema to migrate", cfg.DatabaseDriver)
			}

			var db *sqlx.DB
			if cfg.DatabaseDriver == config.DriverSQLite {
				db, err = database.NewSQLite(cfg.SQLitePath)
			} else {
				db, err = database.NewPostgresSQLX(cfg.DatabaseURL, nil)
			}
			if err != nil {
				return err
			}
			defer db.Close()

			if err := persistence.Migrate(cmd.Context(), db, dialect); err != nil {
				return err
			}
			logger.Info("Schema applied (%s)", dialect)
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest emails from a JSON file, or the bundled demo mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			emails, err := readEmails(file)
			if err != nil {
				return err
			}

			deps, cleanup, err := bootstrap.NewDependencies(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := deps.IngestService.Ingest(cmd.Context(), emails)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d skipped=%d total=%d\n",
				result.Inserted, result.Skipped, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of {sender, subject, body}")
	return cmd
}

func readEmails(file string) ([]domain.RawEmail, error) {
	if file == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return seed.Parse(data)
}
