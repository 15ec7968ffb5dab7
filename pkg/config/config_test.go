package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovelabs/grove/internal/bytesize"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
pool: "stresspool"

logging:
  level: "INFO"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Pool != "stresspool" {
		t.Errorf("Expected pool 'stresspool', got %q", cfg.Pool)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.IO.SeedCount != 10 {
		t.Errorf("Expected default seed_count 10, got %d", cfg.IO.SeedCount)
	}
	if cfg.Backup.Interval != 5*time.Second {
		t.Errorf("Expected default backup interval 5s, got %v", cfg.Backup.Interval)
	}
	if cfg.ZFS.Command != "/sbin/zfs" {
		t.Errorf("Expected default zfs command /sbin/zfs, got %q", cfg.ZFS.Command)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows quick runs against the default pool without a file.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Pool != "tank" {
		t.Errorf("Expected default pool 'tank', got %q", cfg.Pool)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_ByteSizeAndDurationHooks(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
pool: "tank"

io:
  file_min_size: "4MiB"
  file_max_size: "16MiB"

backup:
  interval: "30s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.IO.FileMinSize != 4*bytesize.MiB {
		t.Errorf("Expected file_min_size 4MiB, got %v", cfg.IO.FileMinSize)
	}
	if cfg.IO.FileMaxSize != 16*bytesize.MiB {
		t.Errorf("Expected file_max_size 16MiB, got %v", cfg.IO.FileMaxSize)
	}
	if cfg.Backup.Interval != 30*time.Second {
		t.Errorf("Expected interval 30s, got %v", cfg.Backup.Interval)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
pool: "tank"

zfs:
  elevate: "pfexec"
`)

	t.Setenv("GROVE_POOL", "otherpool")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Pool != "otherpool" {
		t.Errorf("Expected env override pool 'otherpool', got %q", cfg.Pool)
	}
	if cfg.ZFS.Elevate != "pfexec" {
		t.Errorf("Expected elevate 'pfexec' from file, got %q", cfg.ZFS.Elevate)
	}
}

func TestSaveConfig_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Pool = "roundtrip"
	cfg.IO.PlantCount = 7

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Pool != "roundtrip" {
		t.Errorf("Expected pool 'roundtrip', got %q", loaded.Pool)
	}
	if loaded.IO.PlantCount != 7 {
		t.Errorf("Expected plant_count 7, got %d", loaded.IO.PlantCount)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected default config file name 'config.yaml', got %q", filepath.Base(path))
	}
}
