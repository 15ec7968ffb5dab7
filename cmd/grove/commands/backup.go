package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/pkg/config"
	"github.com/grovelabs/grove/pkg/harness"
	"github.com/grovelabs/grove/pkg/metrics/prometheus"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run snapshot lifecycle cycles over the plants",
	Long: `Run the backup mode of the stress harness.

Each cycle snapshots every plant dataset with a shared timestamped name,
trims retained snapshots down below the configured maximum, and validates
an incremental send between the two most recent snapshots. Cycles repeat
at the configured interval until the process is interrupted.

A failed cycle is logged and the next one starts fresh from the live
dataset list, so transient engine failures heal at cycle granularity.

Examples:
  # Run with the default config location
  grove backup

  # Shorter cycle interval
  GROVE_BACKUP_INTERVAL=1s grove backup`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger.Info("starting backup mode",
		logger.KeyRunID, newRunID(),
		logger.KeyMode, "backup",
		logger.KeyPool, cfg.Pool,
		"workers", cfg.Backup.Workers,
		"max_snapshots", cfg.Backup.MaxSnapshots,
		"interval", cfg.Backup.Interval)

	h, err := harness.New(
		newStorageOps(cfg),
		cfg.Pool,
		harness.IOConfig{},
		harness.BackupConfig{
			Workers:      cfg.Backup.Workers,
			MaxSnapshots: cfg.Backup.MaxSnapshots,
			Interval:     cfg.Backup.Interval,
		},
		harness.WithLifecycleMetrics(prometheus.NewLifecycleMetrics()),
	)
	if err != nil {
		return err
	}

	if err := h.RunBackup(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("backup mode stopped")
	return nil
}
