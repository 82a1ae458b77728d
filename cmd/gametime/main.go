// Package main is the service entry point.
// serve runs the HTTP API and the scheduler with graceful shutdown on SIGINT/SIGTERM;
// the other commands are operator tools sharing the same configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fitplay.app/gametime/internal/app"
	"fitplay.app/gametime/internal/config"
	"fitplay.app/gametime/internal/db/postgres"
	"fitplay.app/gametime/internal/features/streak"
)

func main() {
	// Verbose until the configuration says otherwise
	setupLogging("text", "debug")

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gametime",
		Short:         "Game-time ledger and streak engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newResetDailyCmd(), newRecordActivityCmd())
	return root
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.AppLogFormat, cfg.AppLogLevel)
	return cfg, nil
}

// newServeCmd runs the API until a signal arrives.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Info("=== Service starting ===")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Context with cancel for graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Initialize the application (DB, cache, services, handlers)
			application, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer application.Close()

			// Start the cron jobs (daily reset, streak reminders)
			if err := application.Scheduler.Start(ctx); err != nil {
				return err
			}
			defer application.Scheduler.Stop()

			// Ctrl+C, docker stop
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			// Serve in the background; a listen error ends the command
			serverErr := make(chan error, 1)
			go func() { serverErr <- application.Server.Start() }()

			log.Info("=== Service ready ===")

			select {
			case sig := <-quit:
				log.Infof("Received %s, shutting down...", sig)
			case err := <-serverErr:
				if err != nil {
					return err
				}
			}

			// Cancel the context: jobs and websocket clients start to wind down
			cancel()
			if err := application.Server.Shutdown(cfg.HTTPShutdownTimeout); err != nil {
				log.WithError(err).Error("HTTP shutdown failed")
			}
			log.Info("=== Service stopped ===")
			return nil
		},
	}
}

// newMigrateCmd applies migrations without starting anything else.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return app.Migrate(cmd.Context(), pool)
		},
	}
}

// newResetDailyCmd runs the rollover by hand, e.g. after the scheduler was down at midnight.
// Records already reset today are left alone.
func newResetDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-daily",
		Short: "Run the daily rollover for every child now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Ledger.ResetAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d, reset %d, clamped %d, failed %d\n",
				summary.Total, summary.Applied, summary.Clamped, summary.Failures)
			return nil
		},
	}
}

// newRecordActivityCmd records one activity day, for checking streak behaviour by hand.
func newRecordActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-activity <child-id> [date]",
		Short: "Record an activity day for a child (streak harness)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			// Empty date means today
			date := ""
			if len(args) == 2 {
				date = args[1]
			}
			res, err := application.Streak.RecordDailyActivity(cmd.Context(), args[0], date, streak.SourceTest)
			if err != nil {
				return err
			}
			if !res.Applied {
				fmt.Fprintf(cmd.OutOrStdout(), "not applied: %s (streak %d)\n", res.Reason, res.StreakCount)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "streak %d, +%d minutes\n", res.StreakCount, res.RewardMinutes)
			return nil
		},
	}
}

// setupLogging configures the log format and level.
func setupLogging(format, level string) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	log.SetOutput(os.Stdout)
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
}
