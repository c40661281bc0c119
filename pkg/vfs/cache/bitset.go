package cache

import (
	"sync"
	"sync/atomic"
)

const (
	chunkWords = 1024
	chunkBits  = chunkWords * 64
)

type bitChunk [chunkWords]atomic.Uint64

// Bitset is a growable set of non-negative integers.
//
// Set and Test never take a lock once the chunk covering the bit exists.
// Growth copies the chunk directory under a mutex and publishes it
// atomically, so readers always see either the old or the new directory.
type Bitset struct {
	growMu sync.Mutex
	chunks atomic.Pointer[[]*bitChunk]
	count  atomic.Int64
}

// NewBitset returns an empty bitset.
func NewBitset() *Bitset {
	b := &Bitset{}
	empty := make([]*bitChunk, 0)
	b.chunks.Store(&empty)
	return b
}

func (b *Bitset) chunk(i int, create bool) *bitChunk {
	idx := i / chunkBits
	dir := *b.chunks.Load()
	if idx < len(dir) && dir[idx] != nil {
		return dir[idx]
	}
	if !create {
		return nil
	}

	b.growMu.Lock()
	defer b.growMu.Unlock()
	dir = *b.chunks.Load()
	if idx < len(dir) && dir[idx] != nil {
		return dir[idx]
	}
	size := len(dir)
	if idx >= size {
		size = idx + 1
	}
	next := make([]*bitChunk, size)
	copy(next, dir)
	next[idx] = &bitChunk{}
	b.chunks.Store(&next)
	return next[idx]
}

// Set adds i and reports whether it was absent before.
func (b *Bitset) Set(i int) bool {
	if i < 0 {
		return false
	}
	c := b.chunk(i, true)
	off := i % chunkBits
	mask := uint64(1) << (off % 64)
	old := c[off/64].Or(mask)
	if old&mask != 0 {
		return false
	}
	b.count.Add(1)
	return true
}

// Test reports whether i is in the set.
func (b *Bitset) Test(i int) bool {
	if i < 0 {
		return false
	}
	c := b.chunk(i, false)
	if c == nil {
		return false
	}
	off := i % chunkBits
	return c[off/64].Load()&(uint64(1)<<(off%64)) != 0
}

// Count returns the number of bits set.
func (b *Bitset) Count() int {
	return int(b.count.Load())
}
