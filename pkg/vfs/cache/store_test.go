package cache

import (
	"sync"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreateSegmentIsShared(t *testing.T) {
	store := NewStore(nil, nil)

	const workers = 16
	got := make([]*Segment, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seg, err := store.GetOrCreateSegment(vfs.FileID(1000 + i))
			assert.NoError(t, err)
			got[i] = seg
		}(i)
	}
	wg.Wait()

	for _, seg := range got[1:] {
		assert.Same(t, got[0], seg)
	}
	assert.Equal(t, 1, store.SegmentCount())
}

func TestStoreRejectsInvalidIDs(t *testing.T) {
	store := NewStore(nil, nil)

	_, err := store.GetOrCreateSegment(0)
	assert.Error(t, err)
	_, _, err = store.Payload(-3)
	assert.Error(t, err)
	assert.Nil(t, store.Segment(0))
}

func TestStorePayloadLifecycle(t *testing.T) {
	store := NewStore(nil, nil)

	p, state, err := store.Payload(600)
	require.NoError(t, err)
	assert.Equal(t, SlotEmpty, state)
	assert.Nil(t, p.Directory)
	assert.False(t, store.HasLoadedFile(600))

	dir := NewDirectoryRecord(NewNameComparator(true))
	require.NoError(t, store.InitFile(600, 4, Payload{Directory: dir}))
	assert.True(t, store.HasLoadedFile(600))

	p, state, err = store.Payload(600)
	require.NoError(t, err)
	assert.Equal(t, SlotLive, state)
	assert.Same(t, dir, p.Directory)

	nameID, err := store.Name(600)
	require.NoError(t, err)
	assert.Equal(t, vfs.NameID(4), nameID)

	err = store.SetPayload(600, Payload{})
	_, ok := vfs.AsAlreadyInitializedError(err)
	assert.True(t, ok, "got %v", err)

	store.Segment(600).markDead(600)
	_, state, err = store.Payload(600)
	assert.Equal(t, SlotDead, state)
	assert.True(t, vfs.IsInvalidHandle(err))
	assert.True(t, store.HasLoadedFile(600), "dead slots still count as loaded")
}

func TestStoreFieldAccessors(t *testing.T) {
	store := NewStore(nil, nil)

	// nothing loaded yet for this segment
	_, err := store.Flag(70, vfs.FlagHidden)
	_, ok := vfs.AsConsistencyError(err)
	assert.True(t, ok)

	require.NoError(t, store.InitFile(70, 2, Payload{}))
	require.NoError(t, store.SetFlag(70, vfs.FlagHidden, true))
	require.NoError(t, store.SetModificationStamp(70, 77))

	hidden, err := store.Flag(70, vfs.FlagHidden)
	require.NoError(t, err)
	assert.True(t, hidden)
	stamp, err := store.ModificationStamp(70)
	require.NoError(t, err)
	assert.Equal(t, uint32(77), stamp)

	require.NoError(t, store.SetName(70, 9))
	nameID, err := store.Name(70)
	require.NoError(t, err)
	assert.Equal(t, vfs.NameID(9), nameID)
	assert.Error(t, store.SetName(70, 0))

	store.Segment(70).markDead(70)
	_, err = store.Flag(70, vfs.FlagHidden)
	assert.True(t, vfs.IsInvalidHandle(err))
	assert.True(t, vfs.IsInvalidHandle(store.SetFlag(70, vfs.FlagHidden, false)))
}

func TestStoreReset(t *testing.T) {
	reparents := NewReparentIndex()
	store := NewStore(reparents, nil)
	require.NoError(t, store.InitFile(5, 1, Payload{}))
	require.NoError(t, store.InitFile(5000, 1, Payload{}))
	reparents.Record(5, nil)
	assert.Equal(t, 2, store.SegmentCount())

	store.Reset()
	assert.Equal(t, 0, store.SegmentCount())
	assert.False(t, store.HasLoadedFile(5))
	assert.Equal(t, 0, reparents.Len())
}

func TestStoreConcurrentInitFileKeepsWinnerName(t *testing.T) {
	for round := 0; round < 50; round++ {
		store := NewStore(nil, nil)
		id := vfs.FileID(600 + round)

		const workers = 8
		won := make([]bool, workers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				err := store.InitFile(id, vfs.NameID(i+1), Payload{UserMap: vfs.EmptyUserMap})
				if err == nil {
					won[i] = true
					return
				}
				_, ok := vfs.AsAlreadyInitializedError(err)
				assert.True(t, ok, "got %v", err)
			}(i)
		}
		close(start)
		wg.Wait()

		winner := -1
		for i, w := range won {
			if w {
				require.Equal(t, -1, winner, "two callers initialized id %d", id)
				winner = i
			}
		}
		require.NotEqual(t, -1, winner)
		nameID, err := store.Name(id)
		require.NoError(t, err)
		assert.Equal(t, vfs.NameID(winner+1), nameID)
	}
}

func TestStoreFlagRejectsBadMasks(t *testing.T) {
	store := NewStore(nil, nil)
	require.NoError(t, store.InitFile(71, 1, Payload{UserMap: vfs.EmptyUserMap}))
	require.NoError(t, store.SetFlag(71, vfs.FlagHidden, true))

	for _, mask := range []vfs.Flags{0, vfs.StampMask, vfs.FlagHidden | 0x1} {
		ok, err := store.Flag(71, mask)
		code, isCoded := vfs.CodeOf(err)
		require.True(t, isCoded, "mask=%#x: %v", uint32(mask), err)
		assert.Equal(t, vfs.ErrInvalidArgument, code)
		assert.False(t, ok)
	}

	hidden, err := store.Flag(71, vfs.FlagHidden)
	require.NoError(t, err)
	assert.True(t, hidden)
}
