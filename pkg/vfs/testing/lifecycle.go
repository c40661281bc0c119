package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLifecycleTests executes the context and close tests
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("UseAfterClose", suite.testUseAfterClose)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.AllocateID(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func (suite *StoreTestSuite) testUseAfterClose(t *testing.T) {
	store := suite.NewStore()
	require.NoError(t, store.Close())

	_, err := store.AllocateID(context.Background())
	assert.True(t, errors.Is(err, vfs.ErrStoreClosed), "got %v", err)
}
