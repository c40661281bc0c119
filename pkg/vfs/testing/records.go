package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRecordTests executes the record and children index tests
func (suite *StoreTestSuite) RunRecordTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGet)
	t.Run("RecordNotFound", suite.testRecordNotFound)
	t.Run("ChildrenIndex", suite.testChildrenIndex)
	t.Run("ReparentUpdatesIndex", suite.testReparentUpdatesIndex)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteMissing", suite.testDeleteMissing)
	t.Run("InvalidID", suite.testPutInvalidID)
}

func (suite *StoreTestSuite) testPutAndGet(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	root := createRoot(t, store, "/data")
	file := createRecord(t, store, root.ID, "notes.txt", false)

	got, err := store.Record(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	parent, err := store.ParentOf(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, parent)

	rootRec, err := store.Record(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, rootRec.Directory)
	assert.Equal(t, vfs.FileID(0), rootRec.Parent)
}

func (suite *StoreTestSuite) testRecordNotFound(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	_, err := store.Record(ctx, 777)
	assert.True(t, errors.Is(err, vfs.ErrRecordNotFound), "got %v", err)

	_, err = store.ParentOf(ctx, 777)
	assert.True(t, errors.Is(err, vfs.ErrRecordNotFound), "got %v", err)
}

func (suite *StoreTestSuite) testChildrenIndex(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	root := createRoot(t, store, "/data")
	a := createRecord(t, store, root.ID, "a", false)
	b := createRecord(t, store, root.ID, "b", true)
	c := createRecord(t, store, b.ID, "c", false)

	kids, err := store.Children(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileID{a.ID, b.ID}, kids)

	kids, err = store.Children(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileID{c.ID}, kids)

	kids, err = store.Children(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, kids)
}

func (suite *StoreTestSuite) testReparentUpdatesIndex(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	root := createRoot(t, store, "/data")
	src := createRecord(t, store, root.ID, "src", true)
	dst := createRecord(t, store, root.ID, "dst", true)
	file := createRecord(t, store, src.ID, "f", false)

	file.Parent = dst.ID
	require.NoError(t, store.PutRecord(ctx, file))

	kids, err := store.Children(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, kids)

	kids, err = store.Children(ctx, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileID{file.ID}, kids)

	parent, err := store.ParentOf(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, dst.ID, parent)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	root := createRoot(t, store, "/data")
	file := createRecord(t, store, root.ID, "gone", false)

	require.NoError(t, store.DeleteRecord(ctx, file.ID))

	_, err := store.Record(ctx, file.ID)
	assert.True(t, errors.Is(err, vfs.ErrRecordNotFound))

	kids, err := store.Children(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, kids)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.newStore(t)
	assert.NoError(t, store.DeleteRecord(context.Background(), 4242))
}

func (suite *StoreTestSuite) testPutInvalidID(t *testing.T) {
	store := suite.newStore(t)

	err := store.PutRecord(context.Background(), vfs.Record{ID: 0, NameID: 1})
	require.Error(t, err)
	code, ok := vfs.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, vfs.ErrInvalidArgument, code)
}
