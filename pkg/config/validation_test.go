package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown store type")
	}
}

func TestValidate_SegmentBitsFixed(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.SegmentBits = 10

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for segment_bits != 9")
	}
	if !strings.Contains(err.Error(), "SegmentBits") {
		t.Errorf("Expected error to name SegmentBits, got: %v", err)
	}
}

func TestValidate_NegativeDirectoryCacheSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.DirectoryCacheSize = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative directory_cache_size")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for out of range port")
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "badger"
	delete(cfg.Store.Badger, "db_path")

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for badger without db_path")
	}
	if !strings.Contains(err.Error(), "db_path") {
		t.Errorf("Expected 'db_path' error, got: %v", err)
	}

	cfg.Store.Badger["in_memory"] = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected in-memory badger to pass without db_path, got: %v", err)
	}
}

func TestValidate_GCRequiresBadger(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.GC.Enabled = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for gc with the memory store")
	}
	if !strings.Contains(err.Error(), "badger") {
		t.Errorf("Expected error to mention badger, got: %v", err)
	}

	cfg.Store.Type = "badger"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected gc with badger to pass, got: %v", err)
	}
}

func TestValidate_DiscardRatioRange(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1, 1.5} {
		cfg := GetDefaultConfig()
		cfg.GC.DiscardRatio = ratio

		if err := Validate(cfg); err == nil {
			t.Errorf("Expected validation error for discard_ratio %v", ratio)
		}
	}
}
