package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/require"
)

// newStore creates a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(t *testing.T) vfs.RecordStore {
	t.Helper()
	store := suite.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// createRecord allocates an id, interns name and stores the record.
func createRecord(t *testing.T, store vfs.RecordStore, parent vfs.FileID, name string, dir bool) vfs.Record {
	t.Helper()
	ctx := context.Background()

	id, err := store.AllocateID(ctx)
	require.NoError(t, err)
	nameID, err := store.EnsureName(ctx, name)
	require.NoError(t, err)

	rec := vfs.Record{ID: id, Parent: parent, NameID: nameID, Directory: dir}
	require.NoError(t, store.PutRecord(ctx, rec))
	return rec
}

// createRoot creates a directory record registered as a root.
func createRoot(t *testing.T, store vfs.RecordStore, name string) vfs.Record {
	t.Helper()
	rec := createRecord(t, store, 0, name, true)
	require.NoError(t, store.SetRoot(context.Background(), name, rec.ID))
	return rec
}
