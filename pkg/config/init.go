package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented sample configuration written by
// `grove init`. It mirrors GetDefaultConfig so an untouched file loads
// to the same values as no file at all.
const configTemplate = `# Grove Configuration File
#
# Grove is a stress harness for ZFS: the io mode builds seed datasets and
# churns writable clones of them, the backup mode runs snapshot lifecycle
# cycles over those clones.
#
# All options can be overridden with environment variables using the
# GROVE_ prefix, e.g. GROVE_LOGGING_LEVEL=DEBUG or GROVE_POOL=mypool.

# Pool all harness datasets live under. Seeds are created at
# <pool>/seed/NNNN and plants at <pool>/plant/NNNN.
pool: "tank"

logging:
  # Minimum level: DEBUG, INFO, WARN, ERROR
  level: "INFO"
  # Output format: text, json
  format: "text"
  # Destination: stdout, stderr, or a file path
  output: "stdout"

# OpenTelemetry distributed tracing (opt-in)
telemetry:
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 1.0
  # Pyroscope continuous profiling (opt-in)
  profiling:
    enabled: false
    endpoint: "http://localhost:4040"

# Prometheus metrics endpoint (opt-in)
metrics:
  enabled: false
  port: 9090

# io mode: corpus shape and churn pressure
io:
  seed_count: 10
  plant_count: 60
  seed_file_count: 1000
  file_min_size: "2MiB"
  file_max_size: "32MiB"
  threads_per_plant: 4

# backup mode: snapshot lifecycle cycles
backup:
  workers: 8
  max_snapshots: 5
  interval: "5s"

# Storage engine invocation
zfs:
  command: "/sbin/zfs"
  # Privilege elevation command (pfexec, sudo, doas); empty runs directly
  elevate: ""
`

// InitConfig writes the sample configuration file to the default
// location and returns its path. An existing file is only overwritten
// when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration file to path. An
// existing file is only overwritten when force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
