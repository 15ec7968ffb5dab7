package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/pkg/config"
	"github.com/grovelabs/grove/pkg/harness"
	"github.com/grovelabs/grove/pkg/metrics/prometheus"
)

var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Build seeds and plants and churn them continuously",
	Long: `Run the io mode of the stress harness.

The io mode builds the configured number of seed datasets, each holding a
randomized file corpus frozen by a final snapshot. It then destroys and
recreates the plant container, clones every plant from a randomly chosen
seed, and starts the configured number of churn threads per plant. The
churn runs until the process is interrupted.

Seed setup is resumable: a seed whose final snapshot already exists is
left untouched, one without it is destroyed and rebuilt from scratch.

Examples:
  # Run with the default config location
  grove io

  # Run against a different pool
  GROVE_POOL=scratch grove io --config /etc/grove/config.yaml`,
	RunE: runIO,
}

func runIO(cmd *cobra.Command, args []string) error {
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

	logger.Info("starting io mode",
		logger.KeyRunID, newRunID(),
		logger.KeyMode, "io",
		logger.KeyPool, cfg.Pool,
		"seeds", cfg.IO.SeedCount,
		"plants", cfg.IO.PlantCount)

	h, err := harness.New(
		newStorageOps(cfg),
		cfg.Pool,
		harness.IOConfig{
			SeedCount:       cfg.IO.SeedCount,
			PlantCount:      cfg.IO.PlantCount,
			FileCount:       cfg.IO.SeedFileCount,
			FileMinSize:     cfg.IO.FileMinSize,
			FileMaxSize:     cfg.IO.FileMaxSize,
			ThreadsPerPlant: cfg.IO.ThreadsPerPlant,
		},
		harness.BackupConfig{},
		harness.WithChurnMetrics(prometheus.NewChurnMetrics()),
	)
	if err != nil {
		return err
	}

	if err := h.RunIO(ctx); err != nil {
		return err
	}

	logger.Info("io mode stopped")
	return nil
}
