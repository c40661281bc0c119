package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRootTests executes the root table tests
func (suite *StoreTestSuite) RunRootTests(t *testing.T) {
	t.Run("SetAndGet", suite.testRootSetAndGet)
	t.Run("Missing", suite.testRootMissing)
	t.Run("ListAll", suite.testRootsList)
}

func (suite *StoreTestSuite) testRootSetAndGet(t *testing.T) {
	store := suite.newStore(t)
	root := createRoot(t, store, "/srv")

	id, err := store.Root(context.Background(), "/srv")
	require.NoError(t, err)
	assert.Equal(t, root.ID, id)
}

func (suite *StoreTestSuite) testRootMissing(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Root(context.Background(), "/nope")
	assert.True(t, errors.Is(err, vfs.ErrRootNotFound), "got %v", err)
}

func (suite *StoreTestSuite) testRootsList(t *testing.T) {
	store := suite.newStore(t)
	a := createRoot(t, store, "/a")
	b := createRoot(t, store, "/b")

	roots, err := store.Roots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]vfs.FileID{"/a": a.ID, "/b": b.ID}, roots)
}
