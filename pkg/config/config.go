package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete DittoVFS configuration.
//
// This structure captures all configurable aspects of a DittoVFS process:
//   - Logging configuration
//   - Cache settings (name comparison, directory handle registry)
//   - Record store selection and configuration (store-specific)
//   - Metrics exposition
//   - Background value-log garbage collection
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOVFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each record store implementation defines its own options and the Config
// struct holds one map per type (store.memory, store.badger). Only the map
// matching store.type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache configures the in-memory metadata cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Store specifies the record store type and type-specific configuration
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC controls periodic value-log garbage collection
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Loader throttles directory scans
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// CacheConfig configures the metadata cache.
type CacheConfig struct {
	// CaseSensitive selects byte-wise name comparison. When false, names
	// are compared after Unicode case folding.
	CaseSensitive bool `mapstructure:"case_sensitive" yaml:"case_sensitive"`

	// DirectoryCacheSize bounds the registry of directory handles.
	// 0 means the cache default.
	DirectoryCacheSize int `mapstructure:"directory_cache_size" yaml:"directory_cache_size" validate:"gte=0"`

	// SegmentBits is the log2 of the segment size. It is fixed and only
	// accepted so that configuration files can document it.
	SegmentBits int `mapstructure:"segment_bits" yaml:"segment_bits" validate:"eq=9"`
}

// StoreConfig specifies record store configuration.
type StoreConfig struct {
	// Type specifies which record store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// MetricsConfig controls metrics exposition.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the /metrics endpoint
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// GCConfig controls value-log garbage collection of the badger store.
type GCConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between two collection runs
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`

	// DiscardRatio is the fraction of stale data a value-log file needs
	// before it is rewritten
	DiscardRatio float64 `mapstructure:"discard_ratio" yaml:"discard_ratio" validate:"gt=0,lt=1"`
}

// LoaderConfig throttles the directory loader.
type LoaderConfig struct {
	// MaxEntriesPerSecond bounds the sustained scan rate. 0 means unlimited.
	MaxEntriesPerSecond uint `mapstructure:"max_entries_per_second" yaml:"max_entries_per_second"`

	// Burst is the number of entries loaded without waiting
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOVFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys lists the scalar keys that can be overridden from the environment.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"cache.case_sensitive", "cache.directory_cache_size", "cache.segment_bits",
	"store.type", "store.badger.db_path",
	"metrics.enabled", "metrics.port",
	"gc.enabled", "gc.interval", "gc.discard_ratio",
	"loader.max_entries_per_second", "loader.burst",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOVFS_ prefix and underscores
	// Example: DITTOVFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOVFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees environment variables for keys viper knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// a false bool can not be told apart from a missing one after Unmarshal
	v.SetDefault("cache.case_sensitive", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/dittovfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittovfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittovfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
