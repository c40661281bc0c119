package cache

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Store is the segment store: constant time access to per-file slots,
// partitioned into lazily created segments of SegmentSize slots.
//
// A Store belongs to one cache session. It is safe for concurrent use; the
// segment map is the only structure any goroutine may grow.
type Store struct {
	segments  sync.Map // int32 -> *Segment
	count     atomic.Int64
	reparents *ReparentIndex
	metrics   CacheMetrics
}

// NewStore creates an empty store recording reparents into reparents.
func NewStore(reparents *ReparentIndex, metrics CacheMetrics) *Store {
	if metrics == nil {
		metrics = noopCacheMetrics{}
	}
	if reparents == nil {
		reparents = NewReparentIndex()
	}
	return &Store{reparents: reparents, metrics: metrics}
}

// GetOrCreateSegment returns the current segment holding id, creating it if
// needed. When several goroutines race to create the same segment the first
// one stored wins and the others are dropped.
func (s *Store) GetOrCreateSegment(id vfs.FileID) (*Segment, error) {
	if err := vfs.CheckID(id); err != nil {
		return nil, err
	}
	idx := segmentIndex(id)
	if seg, ok := s.segments.Load(idx); ok {
		return seg.(*Segment), nil
	}
	actual, loaded := s.segments.LoadOrStore(idx, newSegment(s, idx))
	if !loaded {
		s.count.Add(1)
		s.metrics.RecordSegmentCreated()
		logger.Debug("Created segment %d for id=%d", idx, id)
	}
	return actual.(*Segment), nil
}

// Segment returns the current segment holding id, or nil.
func (s *Store) Segment(id vfs.FileID) *Segment {
	if !id.Valid() {
		return nil
	}
	seg, ok := s.segments.Load(segmentIndex(id))
	if !ok {
		return nil
	}
	return seg.(*Segment)
}

func (s *Store) existing(id vfs.FileID) (*Segment, error) {
	if err := vfs.CheckID(id); err != nil {
		return nil, err
	}
	seg := s.Segment(id)
	if seg == nil {
		return nil, vfs.NewConsistencyError(id, "no segment loaded for file")
	}
	return seg, nil
}

// Payload returns the payload of id. An empty slot yields SlotEmpty and a
// zero Payload; a dead slot yields an InvalidHandleError.
func (s *Store) Payload(id vfs.FileID) (Payload, SlotState, error) {
	if err := vfs.CheckID(id); err != nil {
		return Payload{}, SlotEmpty, err
	}
	seg := s.Segment(id)
	if seg == nil {
		return Payload{}, SlotEmpty, nil
	}
	sl := seg.load(id)
	switch {
	case sl == nil:
		return Payload{}, SlotEmpty, nil
	case sl.state == SlotDead:
		return Payload{}, SlotDead, &vfs.InvalidHandleError{ID: id}
	}
	return sl.payload, SlotLive, nil
}

// SetPayload publishes the payload of id. It fails with an
// AlreadyInitializedError if the slot already holds live data and with an
// InvalidHandleError if the slot is dead.
func (s *Store) SetPayload(id vfs.FileID, p Payload) error {
	seg, err := s.GetOrCreateSegment(id)
	if err != nil {
		return err
	}
	cell := &seg.data.slots[offsetOf(id)]
	if !cell.CompareAndSwap(nil, liveSlot(p)) {
		return seg.initError(id, seg.NameID(id), cell.Load(), p)
	}
	return nil
}

// InitFile sets the name id and the payload of a new file in one step.
// Concurrent calls for the same id are serialized per segment: exactly one
// wins and the stored name id is the winner's. The losers get an
// AlreadyInitializedError and leave the name id untouched.
func (s *Store) InitFile(id vfs.FileID, nameID vfs.NameID, p Payload) error {
	seg, err := s.GetOrCreateSegment(id)
	if err != nil {
		return err
	}
	return seg.initFile(id, nameID, p)
}

// Name returns the name id stored for id.
func (s *Store) Name(id vfs.FileID) (vfs.NameID, error) {
	seg, err := s.existing(id)
	if err != nil {
		return 0, err
	}
	return seg.NameID(id), nil
}

// SetName stores a positive name id for id.
func (s *Store) SetName(id vfs.FileID, nameID vfs.NameID) error {
	seg, err := s.GetOrCreateSegment(id)
	if err != nil {
		return err
	}
	if err := seg.checkLive(id); err != nil {
		return err
	}
	return seg.setNameID(id, nameID)
}

// Flag reports whether every bit of mask is set for the live file id.
// mask must be non-empty and cover flag bits only.
func (s *Store) Flag(id vfs.FileID, mask vfs.Flags) (bool, error) {
	seg, err := s.existing(id)
	if err != nil {
		return false, err
	}
	if err := seg.checkLive(id); err != nil {
		return false, err
	}
	return seg.CheckedFlag(id, mask)
}

// SetFlag sets or clears mask for the live file id.
func (s *Store) SetFlag(id vfs.FileID, mask vfs.Flags, value bool) error {
	seg, err := s.existing(id)
	if err != nil {
		return err
	}
	if err := seg.checkLive(id); err != nil {
		return err
	}
	return seg.SetFlag(id, mask, value)
}

// SetFlags replaces the bits of id selected by mask with value.
func (s *Store) SetFlags(id vfs.FileID, mask, value vfs.Flags) error {
	seg, err := s.existing(id)
	if err != nil {
		return err
	}
	if err := seg.checkLive(id); err != nil {
		return err
	}
	return seg.SetFlags(id, mask, value)
}

// ModificationStamp returns the stamp of the live file id.
func (s *Store) ModificationStamp(id vfs.FileID) (uint32, error) {
	seg, err := s.existing(id)
	if err != nil {
		return 0, err
	}
	if err := seg.checkLive(id); err != nil {
		return 0, err
	}
	return seg.ModificationStamp(id), nil
}

// SetModificationStamp stores stamp for id, truncated to the stamp bits.
// The flag bits are preserved.
func (s *Store) SetModificationStamp(id vfs.FileID, stamp uint32) error {
	seg, err := s.existing(id)
	if err != nil {
		return err
	}
	if err := seg.checkLive(id); err != nil {
		return err
	}
	seg.SetModificationStamp(id, stamp)
	return nil
}

// ReplaceOnReparent supersedes the segment of id and records parent as the
// new parent of id. The previous segment object stays readable.
func (s *Store) ReplaceOnReparent(id vfs.FileID, parent *Handle) (*Segment, error) {
	seg, err := s.existing(id)
	if err != nil {
		return nil, err
	}
	if err := seg.checkLive(id); err != nil {
		return nil, err
	}
	return seg.changeParent(id, parent)
}

// HasLoadedFile reports whether the slot of id holds anything, dead or live.
func (s *Store) HasLoadedFile(id vfs.FileID) bool {
	seg := s.Segment(id)
	return seg != nil && seg.load(id) != nil
}

// SegmentCount returns the number of segments created.
func (s *Store) SegmentCount() int {
	return int(s.count.Load())
}

// Reset drops every segment and reparent entry.
func (s *Store) Reset() {
	s.segments.Clear()
	s.count.Store(0)
	s.reparents.Clear()
}
