package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNameTests executes the name interning tests
func (suite *StoreTestSuite) RunNameTests(t *testing.T) {
	t.Run("EnsureNameIsIdempotent", suite.testEnsureNameIdempotent)
	t.Run("DistinctNames", suite.testDistinctNames)
	t.Run("NameOfUnknown", suite.testNameOfUnknown)
	t.Run("UnicodeNames", suite.testUnicodeNames)
}

func (suite *StoreTestSuite) testEnsureNameIdempotent(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	first, err := store.EnsureName(ctx, "README.md")
	require.NoError(t, err)
	second, err := store.EnsureName(ctx, "README.md")
	require.NoError(t, err)

	assert.True(t, first.Valid())
	assert.Equal(t, first, second)

	name, err := store.NameOf(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "README.md", name)
}

func (suite *StoreTestSuite) testDistinctNames(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	a, err := store.EnsureName(ctx, "a")
	require.NoError(t, err)
	upper, err := store.EnsureName(ctx, "A")
	require.NoError(t, err)

	// interning is byte exact, case folding is the cache's business
	assert.NotEqual(t, a, upper)
}

func (suite *StoreTestSuite) testNameOfUnknown(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.NameOf(context.Background(), vfs.NameID(12345))
	assert.True(t, errors.Is(err, vfs.ErrNameNotFound), "got %v", err)
}

func (suite *StoreTestSuite) testUnicodeNames(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	for _, name := range []string{"Straße", "日本語.txt", "emoji-🙂"} {
		id, err := store.EnsureName(ctx, name)
		require.NoError(t, err)
		got, err := store.NameOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
}
