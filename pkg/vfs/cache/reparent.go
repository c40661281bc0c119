package cache

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// ReparentIndex remembers the new parent of every file whose segment was
// superseded because the file moved.
//
// Entries are overwritten by later moves of the same file and dropped when
// the file is cleaned up or the session is reset. They are not dropped when
// one handle observes the move, because other stale handles to the same file
// may still need it.
type ReparentIndex struct {
	entries sync.Map // vfs.FileID -> *Handle
	size    atomic.Int64
}

// NewReparentIndex returns an empty index.
func NewReparentIndex() *ReparentIndex {
	return &ReparentIndex{}
}

// Record sets the new parent of id.
func (r *ReparentIndex) Record(id vfs.FileID, parent *Handle) {
	if _, loaded := r.entries.Swap(id, parent); !loaded {
		r.size.Add(1)
	}
}

// Lookup returns the recorded parent of id.
func (r *ReparentIndex) Lookup(id vfs.FileID) (*Handle, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// Remove drops the entry of id, if any.
func (r *ReparentIndex) Remove(id vfs.FileID) {
	if _, loaded := r.entries.LoadAndDelete(id); loaded {
		r.size.Add(-1)
	}
}

// Len returns the number of entries.
func (r *ReparentIndex) Len() int {
	return int(r.size.Load())
}

// Clear drops every entry.
func (r *ReparentIndex) Clear() {
	r.entries.Range(func(k, _ any) bool {
		r.Remove(k.(vfs.FileID))
		return true
	})
}
