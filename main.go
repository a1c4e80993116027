package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtrack_worker/config"
	"jobtrack_worker/internal/bootstrap"
	"jobtrack_worker/pkg/logger"

	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "jobtrack-worker",
	Short:         "Classify job-search email and stage it for review",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger.Init(logger.Config{
			Level:   logger.ParseLevel(cfg.LogLevel),
			Output:  os.Stderr,
			Service: "jobtrack-worker",
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, scanCorrectionsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ingestion endpoint, optionally running batches in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		withWorker, _ := cmd.Flags().GetBool("worker")
		interval, _ := cmd.Flags().GetDuration("worker-interval")

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}
		if withWorker {
			if err := cfg.Validate(config.ModeRun); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{MailStore: withWorker})
		if err != nil {
			return err
		}
		defer cleanup()

		app, err := bootstrap.NewAPI(deps)
		if err != nil {
			return err
		}

		var w *bootstrap.Worker
		if withWorker {
			w = bootstrap.NewWorker(deps, interval)
			if err := w.Start(); err != nil {
				return err
			}
		}

		errCh := make(chan error, 1)
		go func() {
			addr := ":" + cfg.Port
			logger.Info("Starting API server on %s", addr)
			errCh <- app.Listen(addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down (timeout: %v)...", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if w != nil {
			w.Stop(shutdownCtx)
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Error shutting down: %v", err)
		}
		logger.Info("Shut down gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("worker", false, "also run batches and correction scans on a schedule")
	serveCmd.Flags().Duration("worker-interval", 5*time.Minute, "time between scheduled batches")
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify one batch of unprocessed messages",
	Long: `Classify one batch of unprocessed messages and exit.

Examples:
  jobtrack-worker run
  jobtrack-worker run --remote
  jobtrack-worker run --backfill`,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")
		backfill, _ := cmd.Flags().GetBool("backfill")
		remote = remote || cfg.RemoteOnly()

		if backfill && remote {
			return errors.New("--backfill needs the local staging table, not a remote endpoint")
		}
		if err := cfg.Validate(runMode(remote, config.ModeRun)); err != nil {
			return err
		}

		ctx := cmd.Context()
		deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{Remote: remote, MailStore: !backfill})
		if err != nil {
			return err
		}
		defer cleanup()

		if backfill {
			sum, err := deps.NewBackfiller().Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(sum)
		}

		sum, err := deps.NewRunner().Run(ctx)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

func init() {
	runCmd.Flags().Bool("remote", false, "deliver to REMOTE_SYNC_URL instead of the local staging table")
	runCmd.Flags().Bool("backfill", false, "re-run extraction for pending imports with missing fields")
}

// --- scan-corrections ---

var scanCorrectionsCmd = &cobra.Command{
	Use:   "scan-corrections",
	Short: "Forward reviewer relabels found in the mail store",
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")
		remote = remote || cfg.RemoteOnly()

		if err := cfg.Validate(runMode(remote, config.ModeScanCorrections)); err != nil {
			return err
		}

		ctx := cmd.Context()
		deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, bootstrap.Options{Remote: remote, MailStore: true})
		if err != nil {
			return err
		}
		defer cleanup()

		sum, err := deps.NewScanner().Scan(ctx)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

func init() {
	scanCorrectionsCmd.Flags().Bool("remote", false, "deliver to REMOTE_SYNC_URL instead of the local staging table")
}

func runMode(remote bool, local config.Mode) config.Mode {
	if remote {
		return config.ModeRunRemote
	}
	return local
}
