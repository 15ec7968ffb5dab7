package config

import (
	"strings"

	"github.com/grovelabs/grove/pkg/corpus"
	"github.com/grovelabs/grove/pkg/harness"
	"github.com/grovelabs/grove/pkg/lifecycle"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyPoolDefaults(cfg)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyIODefaults(&cfg.IO)
	applyBackupDefaults(&cfg.Backup)
	applyZFSDefaults(&cfg.ZFS)
}

func applyPoolDefaults(cfg *Config) {
	if cfg.Pool == "" {
		cfg.Pool = "tank"
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyIODefaults sets io mode defaults.
func applyIODefaults(cfg *IOConfig) {
	if cfg.SeedCount == 0 {
		cfg.SeedCount = harness.DefaultSeedCount
	}
	if cfg.PlantCount == 0 {
		cfg.PlantCount = harness.DefaultPlantCount
	}
	if cfg.SeedFileCount == 0 {
		cfg.SeedFileCount = corpus.DefaultFileCount
	}
	if cfg.FileMinSize == 0 {
		cfg.FileMinSize = corpus.DefaultMinFileSize
	}
	if cfg.FileMaxSize == 0 {
		cfg.FileMaxSize = corpus.DefaultMaxFileSize
	}
	if cfg.ThreadsPerPlant == 0 {
		cfg.ThreadsPerPlant = harness.DefaultThreadsPerPlant
	}
}

// applyBackupDefaults sets backup mode defaults.
func applyBackupDefaults(cfg *BackupConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = lifecycle.DefaultWorkers
	}
	if cfg.MaxSnapshots == 0 {
		cfg.MaxSnapshots = lifecycle.DefaultMaxSnapshots
	}
	if cfg.Interval == 0 {
		cfg.Interval = lifecycle.DefaultInterval
	}
}

// applyZFSDefaults sets storage engine invocation defaults.
func applyZFSDefaults(cfg *ZFSConfig) {
	if cfg.Command == "" {
		cfg.Command = "/sbin/zfs"
	}
	// Elevate defaults to empty (run zfs directly)
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
