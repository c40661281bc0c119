package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	vfstesting "github.com/marmos91/dittovfs/pkg/vfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBadgerRecordStore runs the RecordStore suite against an on-disk
// BadgerDB per test.
func TestBadgerRecordStore(t *testing.T) {
	suite := &vfstesting.StoreTestSuite{
		NewStore: func() vfs.RecordStore {
			store, err := NewBadgerRecordStore(context.Background(), BadgerRecordStoreConfig{
				DBPath: t.TempDir(),
			})
			require.NoError(t, err)
			return store
		},
	}

	suite.Run(t)
}

func TestBadgerRecordStoreInMemory(t *testing.T) {
	suite := &vfstesting.StoreTestSuite{
		NewStore: func() vfs.RecordStore {
			store, err := NewBadgerRecordStore(context.Background(), BadgerRecordStoreConfig{InMemory: true})
			require.NoError(t, err)
			return store
		},
	}

	suite.Run(t)
}

func TestBadgerRecordStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerRecordStore(ctx, BadgerRecordStoreConfig{DBPath: dir})
	require.NoError(t, err)

	id, err := store.AllocateID(ctx)
	require.NoError(t, err)
	nameID, err := store.EnsureName(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, store.PutRecord(ctx, vfs.Record{ID: id, NameID: nameID, Directory: true}))
	require.NoError(t, store.SetRoot(ctx, "persisted", id))
	require.NoError(t, store.Close())

	store, err = NewBadgerRecordStore(ctx, BadgerRecordStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer store.Close()

	root, err := store.Root(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, id, root)

	again, err := store.EnsureName(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, nameID, again)

	next, err := store.AllocateID(ctx)
	require.NoError(t, err)
	assert.Greater(t, next, id, "ids are never reused across restarts")
}

func TestBadgerRecordStoreValueLogGC(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerRecordStore(ctx, BadgerRecordStoreConfig{DBPath: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	// nothing to rewrite on a fresh database
	assert.NoError(t, store.RunValueLogGC(ctx, 0.5))
}

func TestBadgerRecordStoreRequiresPath(t *testing.T) {
	_, err := NewBadgerRecordStore(context.Background(), BadgerRecordStoreConfig{})
	assert.Error(t, err)
}
