package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowNesting(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, f.root, 21, "n.txt")
	obs := &recordingObserver{c: f.cache}
	f.cache.AddDeletionObserver(obs)

	w := f.cache.BeginWrite()
	w.Begin()
	assert.Equal(t, 2, w.Depth())
	require.NoError(t, f.cache.Invalidate(w, file))

	require.NoError(t, w.End())
	assert.True(t, w.Open())
	assert.Empty(t, obs.batches, "inner End does not clean up")
	assert.True(t, f.cache.Stats().WriteWindowOpen)

	require.NoError(t, w.End())
	assert.False(t, w.Open())
	assert.Len(t, obs.batches, 1)
	assert.False(t, f.cache.Stats().WriteWindowOpen)
}

func TestWindowClosedTwice(t *testing.T) {
	f := newFixture(t)
	w := f.cache.BeginWrite()
	require.NoError(t, w.End())

	err := w.End()
	_, ok := vfs.AsConsistencyError(err)
	assert.True(t, ok, "got %v", err)
}

func TestWindowIsExclusive(t *testing.T) {
	f := newFixture(t)
	w := f.cache.BeginWrite()

	acquired := make(chan *Window)
	go func() {
		acquired <- f.cache.BeginWrite()
	}()

	select {
	case <-acquired:
		t.Fatal("second window opened while the first was open")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, w.End())
	select {
	case w2 := <-acquired:
		assert.True(t, w2.Open())
		require.NoError(t, w2.End())
	case <-time.After(2 * time.Second):
		t.Fatal("second window never opened")
	}
}

func TestWithWriteReturnsCallbackError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.cache.WithWrite(func(w *Window) error {
		assert.True(t, w.Open())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.cache.Stats().WriteWindowOpen, "window closed even on failure")
}
