package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs/badger"
	"github.com/marmos91/dittovfs/pkg/vfs/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecordStore_Memory(t *testing.T) {
	store, err := CreateRecordStore(context.Background(), &StoreConfig{Type: "memory"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.IsType(t, &memory.MemoryRecordStore{}, store)
}

func TestCreateRecordStore_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "badger",
		Badger: map[string]any{
			"db_path":        filepath.Join(t.TempDir(), "db"),
			"block_cache_mb": "16",
			"index_cache_mb": 8,
		},
	}

	store, err := CreateRecordStore(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.IsType(t, &badger.BadgerRecordStore{}, store)

	id, err := store.AllocateID(ctx)
	require.NoError(t, err)
	assert.True(t, id.Valid())
}

func TestCreateRecordStore_BadgerMissingPath(t *testing.T) {
	_, err := CreateRecordStore(context.Background(), &StoreConfig{Type: "badger", Badger: map[string]any{}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "db_path is required"), err.Error())
}

func TestCreateRecordStore_UnknownType(t *testing.T) {
	_, err := CreateRecordStore(context.Background(), &StoreConfig{Type: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown record store type")
}

func TestCreateRecordStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateRecordStore(ctx, &StoreConfig{Type: "memory"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBadgerOptions(t *testing.T) {
	opts, err := DecodeBadgerOptions(map[string]any{
		"db_path":     "/var/lib/dittovfs",
		"sync_writes": "true",
		"in_memory":   false,
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/dittovfs", opts.DBPath)
	assert.True(t, opts.SyncWrites)
	assert.False(t, opts.InMemory)
}

func TestCreateCache(t *testing.T) {
	records, err := CreateRecordStore(context.Background(), &StoreConfig{Type: "memory"})
	require.NoError(t, err)

	c, err := CreateCache(&CacheConfig{CaseSensitive: false, DirectoryCacheSize: 16}, records, nil)
	require.NoError(t, err)
	assert.False(t, c.Comparator().CaseSensitive())
	assert.Equal(t, records, c.Records())

}

func TestInitializeMetrics_Disabled(t *testing.T) {
	res := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, res.Server)
	assert.Nil(t, res.CacheMetrics)
}

func TestCreateRateLimiter(t *testing.T) {
	assert.Nil(t, CreateRateLimiter(&LoaderConfig{}))

	limiter := CreateRateLimiter(&LoaderConfig{MaxEntriesPerSecond: 5, Burst: 2})
	require.NotNil(t, limiter)
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}
