package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "debug"

store:
  type: "memory"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if !cfg.Cache.CaseSensitive {
		t.Error("Expected case sensitive names by default")
	}
	if cfg.Cache.SegmentBits != 9 {
		t.Errorf("Expected segment_bits 9, got %d", cfg.Cache.SegmentBits)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.GC.Interval != 5*time.Minute {
		t.Errorf("Expected default gc interval 5m, got %v", cfg.GC.Interval)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing explicit path must not fall back to the user's config
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected default store type 'memory', got %q", cfg.Store.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: WARN
  format: json
  output: stderr
cache:
  case_sensitive: false
  directory_cache_size: 1024
store:
  type: badger
  badger:
    db_path: ` + filepath.Join(tmpDir, "db") + `
    sync_writes: true
metrics:
  enabled: true
  port: 9300
gc:
  enabled: true
  interval: 30s
  discard_ratio: 0.7
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Cache.CaseSensitive {
		t.Error("Expected case_sensitive false")
	}
	if cfg.Cache.DirectoryCacheSize != 1024 {
		t.Errorf("Expected directory_cache_size 1024, got %d", cfg.Cache.DirectoryCacheSize)
	}
	if cfg.Store.Type != "badger" {
		t.Errorf("Expected store type badger, got %q", cfg.Store.Type)
	}
	if cfg.GC.Interval != 30*time.Second || cfg.GC.DiscardRatio != 0.7 {
		t.Errorf("Unexpected gc config: %+v", cfg.GC)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9300 {
		t.Errorf("Unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DITTOVFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOVFS_CACHE_CASE_SENSITIVE", "false")
	t.Setenv("DITTOVFS_METRICS_PORT", "9555")

	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level from env 'ERROR', got %q", cfg.Logging.Level)
	}
	if cfg.Cache.CaseSensitive {
		t.Error("Expected case_sensitive from env to be false")
	}
	if cfg.Metrics.Port != 9555 {
		t.Errorf("Expected metrics port from env 9555, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
gc:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected gc on the memory store to be rejected")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	path := GetDefaultConfigPath()
	if path != filepath.Join("/xdg", "dittovfs", "config.yaml") {
		t.Errorf("Unexpected default config path %q", path)
	}
}
