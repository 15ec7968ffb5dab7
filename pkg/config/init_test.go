package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	// Override XDG_CONFIG_HOME so getConfigDir() resolves to a temp dir.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# Grove Configuration File",
		"pool:",
		"logging:",
		"io:",
		"backup:",
		"zfs:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	// The generated file must be valid YAML
	var parsed map[string]any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Errorf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}

	// Force overwrites
	if _, err := InitConfig(true); err != nil {
		t.Errorf("Expected force overwrite to succeed, got: %v", err)
	}
}

func TestInitConfig_TemplateMatchesDefaults(t *testing.T) {
	// An untouched template must load to the same values as no config
	// file at all.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load template config: %v", err)
	}

	defaults := GetDefaultConfig()
	if loaded.Pool != defaults.Pool {
		t.Errorf("Template pool %q differs from default %q", loaded.Pool, defaults.Pool)
	}
	if loaded.IO != defaults.IO {
		t.Errorf("Template io section %+v differs from defaults %+v", loaded.IO, defaults.IO)
	}
	if loaded.Backup != defaults.Backup {
		t.Errorf("Template backup section %+v differs from defaults %+v", loaded.Backup, defaults.Backup)
	}
	if loaded.ZFS != defaults.ZFS {
		t.Errorf("Template zfs section %+v differs from defaults %+v", loaded.ZFS, defaults.ZFS)
	}
}

func TestInitConfigToPath_CustomLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "grove.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file was not created at %s: %v", path, err)
	}
}
