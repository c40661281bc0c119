package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/ratelimiter"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/marmos91/dittovfs/pkg/vfs/badger"
	"github.com/marmos91/dittovfs/pkg/vfs/cache"
	"github.com/marmos91/dittovfs/pkg/vfs/memory"
	"github.com/mitchellh/mapstructure"
)

// CreateRecordStore creates a record store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/vfs/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/vfs/badger (BadgerDB storage, persistent)
func CreateRecordStore(ctx context.Context, cfg *StoreConfig) (vfs.RecordStore, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryRecordStore(ctx, cfg.Memory)
	case "badger":
		return createBadgerRecordStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown record store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createMemoryRecordStore creates an in-memory record store.
func createMemoryRecordStore(ctx context.Context, options map[string]any) (vfs.RecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		logger.Warn("Ignoring %d option(s) of the memory record store", len(options))
	}
	return memory.NewMemoryRecordStore(), nil
}

// BadgerOptions are the options of the badger record store section.
type BadgerOptions struct {
	DBPath           string `mapstructure:"db_path"`
	InMemory         bool   `mapstructure:"in_memory"`
	SyncWrites       bool   `mapstructure:"sync_writes"`
	BlockCacheSizeMB int64  `mapstructure:"block_cache_mb"`
	IndexCacheSizeMB int64  `mapstructure:"index_cache_mb"`
}

// DecodeBadgerOptions decodes the badger section of the store config.
func DecodeBadgerOptions(options map[string]any) (BadgerOptions, error) {
	var opts BadgerOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return opts, fmt.Errorf("failed to decode badger record store options: %w", err)
	}
	return opts, nil
}

// createBadgerRecordStore creates a BadgerDB-based persistent record store.
func createBadgerRecordStore(ctx context.Context, options map[string]any) (vfs.RecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := DecodeBadgerOptions(options)
	if err != nil {
		return nil, err
	}
	if opts.DBPath == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger record store: db_path is required")
	}

	store, err := badger.NewBadgerRecordStore(ctx, badger.BadgerRecordStoreConfig{
		DBPath:           opts.DBPath,
		InMemory:         opts.InMemory,
		SyncWrites:       opts.SyncWrites,
		BlockCacheSizeMB: opts.BlockCacheSizeMB,
		IndexCacheSizeMB: opts.IndexCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger record store: %w", err)
	}

	logger.Info("Badger record store opened: path=%s in_memory=%t", opts.DBPath, opts.InMemory)
	return store, nil
}

// CreateCache creates the metadata cache over records.
func CreateCache(cfg *CacheConfig, records vfs.RecordStore, m cache.CacheMetrics) (*cache.Cache, error) {
	return cache.New(cache.Config{
		CaseSensitive:      cfg.CaseSensitive,
		DirectoryCacheSize: cfg.DirectoryCacheSize,
	}, records, cache.WithMetrics(m))
}

// CreateRateLimiter returns the scan throttle, or nil when scans are
// unlimited.
func CreateRateLimiter(cfg *LoaderConfig) *ratelimiter.RateLimiter {
	return ratelimiter.New(cfg.MaxEntriesPerSecond, cfg.Burst)
}
