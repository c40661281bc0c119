package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAllocationTests executes the id allocation tests
func (suite *StoreTestSuite) RunAllocationTests(t *testing.T) {
	t.Run("PositiveAndIncreasing", suite.testAllocatePositiveAndIncreasing)
	t.Run("Concurrent", suite.testAllocateConcurrent)
}

func (suite *StoreTestSuite) testAllocatePositiveAndIncreasing(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	prev := vfs.FileID(0)
	for i := 0; i < 10; i++ {
		id, err := store.AllocateID(ctx)
		require.NoError(t, err)
		assert.True(t, id.Valid())
		assert.Greater(t, id, prev)
		prev = id
	}
}

func (suite *StoreTestSuite) testAllocateConcurrent(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	const workers, perWorker = 8, 50
	ids := make(chan vfs.FileID, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := store.AllocateID(ctx)
				if err != nil {
					t.Errorf("AllocateID: %v", err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[vfs.FileID]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}
