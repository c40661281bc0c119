package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultMetricsPort is the port of the /metrics endpoint.
	DefaultMetricsPort = 9090

	// DefaultSegmentBits is the only supported segment size (512 slots).
	DefaultSegmentBits = 9
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans are defaulted through viper before unmarshalling
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCacheDefaults(&cfg.Cache)
	applyStoreDefaults(&cfg.Store)
	applyMetricsDefaults(&cfg.Metrics)
	applyGCDefaults(&cfg.GC)
	applyLoaderDefaults(&cfg.Loader)
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

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.SegmentBits == 0 {
		cfg.SegmentBits = DefaultSegmentBits
	}
	// DirectoryCacheSize 0 is resolved by the cache itself
}

// applyStoreDefaults sets record store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["sync_writes"]; !ok {
		cfg.Badger["sync_writes"] = false
	}
	if _, ok := cfg.Badger["block_cache_mb"]; !ok {
		cfg.Badger["block_cache_mb"] = int64(64)
	}
	if _, ok := cfg.Badger["index_cache_mb"]; !ok {
		cfg.Badger["index_cache_mb"] = int64(32)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.DiscardRatio == 0 {
		cfg.DiscardRatio = 0.5
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Cache: CacheConfig{
			CaseSensitive: true,
		},
		Store: StoreConfig{
			Memory: make(map[string]any),
			Badger: map[string]any{
				"db_path": filepath.Join(GetConfigDir(), "records"),
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

func applyLoaderDefaults(cfg *LoaderConfig) {
	if cfg.MaxEntriesPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = cfg.MaxEntriesPerSecond
	}
}
