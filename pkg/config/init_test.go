package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()

	// Point the config directory at the temp dir through HOME
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, ".config", "dittovfs", "config.yaml")
	if configPath != expectedPath {
		t.Errorf("Expected config at %s, got %s", expectedPath, configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DittoVFS Configuration File",
		"logging:",
		"cache:",
		"store:",
		"metrics:",
		"gc:",
	}

	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("garbage: ["), 0644); err != nil {
		t.Fatalf("Failed to corrupt config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	if _, err := Load(configPath); err != nil {
		t.Errorf("Overwritten config does not load: %v", err)
	}
}

func TestInitConfigToPath_CreatesParents(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "a", "b", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestInitConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	want := GetDefaultConfig()
	if cfg.Logging != want.Logging {
		t.Errorf("Logging mismatch: got %+v, want %+v", cfg.Logging, want.Logging)
	}
	if cfg.Cache != want.Cache {
		t.Errorf("Cache mismatch: got %+v, want %+v", cfg.Cache, want.Cache)
	}
	if cfg.Metrics != want.Metrics {
		t.Errorf("Metrics mismatch: got %+v, want %+v", cfg.Metrics, want.Metrics)
	}
	if cfg.GC != want.GC {
		t.Errorf("GC mismatch: got %+v, want %+v", cfg.GC, want.GC)
	}
	if cfg.Store.Type != want.Store.Type {
		t.Errorf("Store type mismatch: got %q, want %q", cfg.Store.Type, want.Store.Type)
	}
	if cfg.Store.Badger["db_path"] != want.Store.Badger["db_path"] {
		t.Errorf("db_path mismatch: got %v, want %v", cfg.Store.Badger["db_path"], want.Store.Badger["db_path"])
	}
}

func TestRenderYAML_ValidYAML(t *testing.T) {
	data, err := RenderYAML(GetDefaultConfig())
	if err != nil {
		t.Fatalf("RenderYAML failed: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Rendered config is not valid YAML: %v", err)
	}

	store, ok := parsed["store"].(map[string]any)
	if !ok {
		t.Fatalf("Missing store section in %s", data)
	}
	if store["type"] != "memory" {
		t.Errorf("Expected store type memory, got %v", store["type"])
	}
}
