package cache

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Tracker follows ids through Live -> PendingCleanup -> Dead.
//
// Invalidate flips the id in the dead bitset immediately and queues it.
// The slot keeps its data until RunDeferredCleanup, which the write window
// calls once deletion observers have seen the pending ids.
type Tracker struct {
	dead *Bitset

	mu    sync.Mutex // guards queue
	queue *roaring.Bitmap

	store     *Store
	reparents *ReparentIndex
	metrics   CacheMetrics
}

// NewTracker creates a tracker cleaning slots of store.
func NewTracker(store *Store, metrics CacheMetrics) *Tracker {
	if metrics == nil {
		metrics = noopCacheMetrics{}
	}
	return &Tracker{
		dead:      NewBitset(),
		queue:     roaring.New(),
		store:     store,
		reparents: store.reparents,
		metrics:   metrics,
	}
}

// Invalidate marks id as pending cleanup. It reports false if id was
// already invalidated.
func (t *Tracker) Invalidate(id vfs.FileID) bool {
	if !id.Valid() {
		return false
	}
	if !t.dead.Set(int(id)) {
		return false
	}
	t.mu.Lock()
	t.queue.Add(uint32(id))
	t.mu.Unlock()
	t.metrics.RecordInvalidation()
	return true
}

// IsLive reports whether id has never been invalidated.
func (t *Tracker) IsLive(id vfs.FileID) bool {
	return !t.dead.Test(int(id))
}

// DeadCount returns the number of ids invalidated in this session.
func (t *Tracker) DeadCount() int {
	return t.dead.Count()
}

// Pending returns the ids waiting for cleanup in ascending order.
func (t *Tracker) Pending() []vfs.FileID {
	t.mu.Lock()
	raw := t.queue.ToArray()
	t.mu.Unlock()
	return toFileIDs(raw)
}

// PendingCount returns the number of ids waiting for cleanup.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.queue.GetCardinality())
}

// RunDeferredCleanup marks every pending slot dead and drops its reparent
// entry. It must only run when no deletion observer can still need the data.
// It returns the ids it cleaned.
func (t *Tracker) RunDeferredCleanup() []vfs.FileID {
	t.mu.Lock()
	if t.queue.IsEmpty() {
		t.mu.Unlock()
		return nil
	}
	batch := t.queue
	t.queue = roaring.New()
	t.mu.Unlock()

	ids := toFileIDs(batch.ToArray())
	for _, id := range ids {
		seg, err := t.store.GetOrCreateSegment(id)
		if err != nil {
			logger.Warn("Skipping cleanup of id=%d: %v", id, err)
			continue
		}
		seg.markDead(id)
		t.reparents.Remove(id)
	}
	logger.Debug("Cleaned up %d invalidated files", len(ids))
	return ids
}

func toFileIDs(raw []uint32) []vfs.FileID {
	if len(raw) == 0 {
		return nil
	}
	ids := make([]vfs.FileID, len(raw))
	for i, v := range raw {
		ids[i] = vfs.FileID(v)
	}
	return ids
}
