package testing

import (
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// StoreTestSuite is a conformance suite for vfs.RecordStore implementations.
// It only exercises the interface contract, so every implementation (memory,
// badger, ...) runs the same tests.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() vfs.RecordStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Allocation", suite.RunAllocationTests)
	test.Run("Names", suite.RunNameTests)
	test.Run("Records", suite.RunRecordTests)
	test.Run("Roots", suite.RunRootTests)
	test.Run("Lifecycle", suite.RunLifecycleTests)
}
