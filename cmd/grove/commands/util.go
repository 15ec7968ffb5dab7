package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grovelabs/grove/internal/logger"
	"github.com/grovelabs/grove/internal/telemetry"
	"github.com/grovelabs/grove/pkg/config"
	"github.com/grovelabs/grove/pkg/metrics"
	"github.com/grovelabs/grove/pkg/zfs"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initObservability brings up telemetry, profiling, and the metrics
// endpoint according to configuration. The returned function shuts the
// enabled pieces down.
func initObservability(ctx context.Context, cfg *config.Config) (shutdown func(), err error) {
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "grove",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "grove",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if cfg.Metrics.Enabled {
		if err := metrics.Init(cfg.Metrics.Port); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}, nil
}

// newStorageOps builds the zfs command adapter from configuration.
func newStorageOps(cfg *config.Config) *zfs.CLI {
	return zfs.NewCLI(cfg.ZFS.Command, cfg.ZFS.Elevate)
}

// newRunID returns a unique identifier logged at mode startup so runs
// can be told apart in aggregated logs.
func newRunID() string {
	return uuid.New().String()
}
