package cache

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

const (
	// SegmentBits is the number of low id bits addressing a slot.
	SegmentBits = 9

	// SegmentSize is the number of slots per segment.
	SegmentSize = 1 << SegmentBits

	// OffsetMask extracts the slot offset from an id.
	OffsetMask = SegmentSize - 1
)

// segmentArrays holds the per-slot fields of one segment. A segment and its
// reparent replacements share the same arrays.
type segmentArrays struct {
	// initMu serializes initFile so the name id stored for a slot is the
	// one of the caller whose payload got published.
	initMu sync.Mutex

	names [SegmentSize]atomic.Int32
	flags [SegmentSize]atomic.Uint32
	slots [SegmentSize]atomic.Pointer[slot]
}

// Segment caches the state of SegmentSize consecutive file ids.
//
// A Segment may be superseded by a replacement sharing its arrays when one of
// its files changes parent. Holders of the old Segment keep reading
// consistent data and follow the replacement to learn about the move.
type Segment struct {
	store *Store
	index int32
	data  *segmentArrays

	replacement atomic.Pointer[Segment]
}

func newSegment(store *Store, index int32) *Segment {
	return &Segment{store: store, index: index, data: &segmentArrays{}}
}

func segmentIndex(id vfs.FileID) int32 {
	return int32(id) >> SegmentBits
}

func offsetOf(id vfs.FileID) int {
	return int(id) & OffsetMask
}

// Index returns the segment number, id >> SegmentBits.
func (s *Segment) Index() int32 { return s.index }

// Replacement returns the segment that superseded s, or nil.
func (s *Segment) Replacement() *Segment { return s.replacement.Load() }

// latest follows the replacement chain to the current segment.
func (s *Segment) latest() *Segment {
	cur := s
	for next := cur.replacement.Load(); next != nil; next = cur.replacement.Load() {
		cur = next
	}
	return cur
}

func (s *Segment) load(id vfs.FileID) *slot {
	return s.data.slots[offsetOf(id)].Load()
}

// State returns the tag of id's slot.
func (s *Segment) State(id vfs.FileID) SlotState {
	sl := s.load(id)
	if sl == nil {
		return SlotEmpty
	}
	return sl.state
}

func (s *Segment) checkLive(id vfs.FileID) error {
	if s.load(id) == deadSlot {
		return &vfs.InvalidHandleError{ID: id}
	}
	return nil
}

// NameID returns the interned name id of the file. It does not check for
// dead slots so that diagnostics can still name a dead file.
func (s *Segment) NameID(id vfs.FileID) vfs.NameID {
	return vfs.NameID(s.data.names[offsetOf(id)].Load())
}

func (s *Segment) setNameID(id vfs.FileID, nameID vfs.NameID) error {
	if !nameID.Valid() {
		return vfs.NewConsistencyError(id, "name id must be positive").
			WithDetail("nameId", nameID)
	}
	s.data.names[offsetOf(id)].Store(int32(nameID))
	return nil
}

// Flags returns the raw packed word of id.
func (s *Segment) Flags(id vfs.FileID) vfs.Flags {
	return vfs.Flags(s.data.flags[offsetOf(id)].Load())
}

// Flag reports whether every bit of mask is set for id. A mask that is
// empty or covers stamp bits never matches; use CheckedFlag to get an error.
func (s *Segment) Flag(id vfs.FileID, mask vfs.Flags) bool {
	return mask.Valid() && s.Flags(id).Has(mask)
}

// CheckedFlag is Flag returning an ArgumentError for an invalid mask.
func (s *Segment) CheckedFlag(id vfs.FileID, mask vfs.Flags) (bool, error) {
	if !mask.Valid() {
		return false, &vfs.ArgumentError{Arg: "mask", Value: mask}
	}
	return s.Flags(id).Has(mask), nil
}

// SetFlag sets or clears mask.
func (s *Segment) SetFlag(id vfs.FileID, mask vfs.Flags, value bool) error {
	var v vfs.Flags
	if value {
		v = mask
	}
	return s.SetFlags(id, mask, v)
}

// SetFlags replaces the bits selected by mask with value. value must not set
// bits outside mask, and mask must only cover flag bits.
func (s *Segment) SetFlags(id vfs.FileID, mask, value vfs.Flags) error {
	if !mask.Valid() {
		return &vfs.ArgumentError{Arg: "mask", Value: mask}
	}
	if value&^mask != 0 {
		return &vfs.ArgumentError{Arg: "value", Value: value}
	}
	if logger.IsDebugEnabled() {
		logger.Debug("Set flags %#08x=%#08x for id=%d", uint32(mask), uint32(value), id)
	}
	word := &s.data.flags[offsetOf(id)]
	for {
		old := word.Load()
		next := old&^uint32(mask) | uint32(value)
		if word.CompareAndSwap(old, next) {
			return nil
		}
		s.store.metrics.RecordCASRetry("flags")
	}
}

// ModificationStamp returns the low bits of the packed word.
func (s *Segment) ModificationStamp(id vfs.FileID) uint32 {
	return s.Flags(id).Stamp()
}

// SetModificationStamp stores stamp, truncated to the stamp bits, keeping
// every flag bit untouched.
func (s *Segment) SetModificationStamp(id vfs.FileID, stamp uint32) {
	word := &s.data.flags[offsetOf(id)]
	for {
		old := word.Load()
		next := old&uint32(vfs.AllFlagsMask) | stamp&uint32(vfs.StampMask)
		if word.CompareAndSwap(old, next) {
			return
		}
		s.store.metrics.RecordCASRetry("stamp")
	}
}

// UserMap returns the user data of a plain file.
func (s *Segment) UserMap(id vfs.FileID) (*vfs.UserMap, error) {
	sl := s.load(id)
	switch {
	case sl == nil:
		return nil, vfs.NewConsistencyError(id, "file is not loaded")
	case sl.state == SlotDead:
		return nil, &vfs.InvalidHandleError{ID: id}
	case sl.payload.Directory != nil:
		return sl.payload.Directory.UserMap(), nil
	}
	return sl.payload.UserMap, nil
}

// ChangeUserMap publishes next if the file's current map is still old.
// It returns false when another writer got there first; the caller should
// re-read and retry.
func (s *Segment) ChangeUserMap(id vfs.FileID, old, next *vfs.UserMap) (bool, error) {
	cell := &s.data.slots[offsetOf(id)]
	cur := cell.Load()
	switch {
	case cur == nil:
		return false, vfs.NewConsistencyError(id, "file is not loaded")
	case cur.state == SlotDead:
		return false, &vfs.InvalidHandleError{ID: id}
	case cur.payload.Directory != nil:
		return cur.payload.Directory.ChangeUserMap(old, next), nil
	case cur.payload.UserMap != old:
		return false, nil
	}
	return cell.CompareAndSwap(cur, liveSlot(Payload{UserMap: next})), nil
}

// initFile stores the name id and publishes the payload of a new file.
// Initializing a slot that is not empty fails, whatever the payload.
func (s *Segment) initFile(id vfs.FileID, nameID vfs.NameID, p Payload) error {
	s.data.initMu.Lock()
	defer s.data.initMu.Unlock()

	cell := &s.data.slots[offsetOf(id)]
	if existing := cell.Load(); existing != nil {
		return s.initError(id, nameID, existing, p)
	}
	if err := s.setNameID(id, nameID); err != nil {
		return err
	}
	next := liveSlot(p)
	if !cell.CompareAndSwap(nil, next) {
		return s.initError(id, nameID, cell.Load(), p)
	}
	return nil
}

func (s *Segment) initError(id vfs.FileID, nameID vfs.NameID, existing *slot, p Payload) error {
	if existing == deadSlot {
		return &vfs.InvalidHandleError{ID: id}
	}
	return &vfs.AlreadyInitializedError{
		ID:       id,
		NameID:   nameID,
		Existing: existing.String(),
		Incoming: p.String(),
	}
}

func (s *Segment) markDead(id vfs.FileID) {
	s.data.slots[offsetOf(id)].Store(deadSlot)
}

// changeParent supersedes s by a copy sharing its arrays and records the
// new parent of id. Only one reparent may be pending per segment generation.
func (s *Segment) changeParent(id vfs.FileID, parent *Handle) (*Segment, error) {
	if s.replacement.Load() != nil {
		return nil, vfs.NewConsistencyError(id, "segment already replaced by a pending reparent").
			WithDetail("segment", s.index)
	}
	if cur, _ := s.store.segments.Load(s.index); cur != s {
		return nil, vfs.NewConsistencyError(id, "segment is no longer the current one").
			WithDetail("segment", s.index)
	}
	next := &Segment{store: s.store, index: s.index, data: s.data}

	// the new parent must be visible before the replacement is
	prev, hadPrev := s.store.reparents.Lookup(id)
	s.store.reparents.Record(id, parent)
	if !s.store.segments.CompareAndSwap(s.index, s, next) {
		if hadPrev {
			s.store.reparents.Record(id, prev)
		} else {
			s.store.reparents.Remove(id)
		}
		return nil, vfs.NewConsistencyError(id, "lost the race to replace the segment").
			WithDetail("segment", s.index)
	}
	s.replacement.Store(next)
	s.store.metrics.RecordReparent()
	return next, nil
}
