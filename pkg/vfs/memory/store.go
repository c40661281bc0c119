package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// MemoryRecordStore implements vfs.RecordStore using in-memory maps.
//
// It is suitable for:
//   - Tests of the cache and of the loader
//   - Ephemeral trees that do not need to survive a restart
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu). Queries take
// the read lock and mutations the write lock.
//
// Storage Model:
//
//  1. Records (records):
//     Maps each file id to its parent, name id and kind.
//
//  2. Children index (children):
//     Maps each directory id to the set of ids whose parent it is. Kept in
//     sync with records by PutRecord and DeleteRecord.
//
//  3. Names (names, nameIDs):
//     Bidirectional name interning. Name ids start at 1 and are never reused.
//
//  4. Roots (roots):
//     Maps root names to the id of their directory.
//
// Id Allocation:
//
// File ids come from a monotonically increasing counter starting at 1, so
// they are dense and never reused within the lifetime of the store.
type MemoryRecordStore struct {
	// mu protects all fields in this struct for concurrent access.
	mu sync.RWMutex

	// records maps a file id to its durable record.
	records map[vfs.FileID]vfs.Record

	// children maps a directory id to its child ids.
	// Note: directories without children may have no entry.
	children map[vfs.FileID]map[vfs.FileID]struct{}

	// names maps a name id to the interned string.
	names map[vfs.NameID]string

	// nameIDs maps an interned string back to its id.
	nameIDs map[string]vfs.NameID

	// roots maps a root name to its directory id.
	roots map[string]vfs.FileID

	// nextID is the last allocated file id.
	nextID vfs.FileID

	// nextName is the last allocated name id.
	nextName vfs.NameID

	closed bool
}

// NewMemoryRecordStore creates an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records:  make(map[vfs.FileID]vfs.Record),
		children: make(map[vfs.FileID]map[vfs.FileID]struct{}),
		names:    make(map[vfs.NameID]string),
		nameIDs:  make(map[string]vfs.NameID),
		roots:    make(map[string]vfs.FileID),
	}
}

func (s *MemoryRecordStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return vfs.ErrStoreClosed
	}
	return nil
}

// AllocateID returns the next file id.
func (s *MemoryRecordStore) AllocateID(ctx context.Context) (vfs.FileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	s.nextID++
	return s.nextID, nil
}

// EnsureName interns name.
func (s *MemoryRecordStore) EnsureName(ctx context.Context, name string) (vfs.NameID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if id, ok := s.nameIDs[name]; ok {
		return id, nil
	}
	s.nextName++
	s.names[s.nextName] = name
	s.nameIDs[name] = s.nextName
	return s.nextName, nil
}

// NameOf returns the string interned under id.
func (s *MemoryRecordStore) NameOf(ctx context.Context, id vfs.NameID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	name, ok := s.names[id]
	if !ok {
		return "", vfs.ErrNameNotFound
	}
	return name, nil
}

// PutRecord stores rec and moves it between children indexes if its parent
// changed.
func (s *MemoryRecordStore) PutRecord(ctx context.Context, rec vfs.Record) error {
	if err := vfs.CheckID(rec.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if old, ok := s.records[rec.ID]; ok && old.Parent != rec.Parent {
		s.unlinkLocked(old.Parent, rec.ID)
	}
	s.records[rec.ID] = rec
	if rec.Parent.Valid() {
		kids, ok := s.children[rec.Parent]
		if !ok {
			kids = make(map[vfs.FileID]struct{})
			s.children[rec.Parent] = kids
		}
		kids[rec.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryRecordStore) unlinkLocked(parent, id vfs.FileID) {
	kids, ok := s.children[parent]
	if !ok {
		return
	}
	delete(kids, id)
	if len(kids) == 0 {
		delete(s.children, parent)
	}
}

// Record returns the record of id.
func (s *MemoryRecordStore) Record(ctx context.Context, id vfs.FileID) (vfs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return vfs.Record{}, err
	}
	rec, ok := s.records[id]
	if !ok {
		return vfs.Record{}, vfs.ErrRecordNotFound
	}
	return rec, nil
}

// ParentOf returns the parent of id.
func (s *MemoryRecordStore) ParentOf(ctx context.Context, id vfs.FileID) (vfs.FileID, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return 0, err
	}
	return rec.Parent, nil
}

// Children returns the ids whose parent is id, ascending.
func (s *MemoryRecordStore) Children(ctx context.Context, id vfs.FileID) ([]vfs.FileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	kids := s.children[id]
	out := make([]vfs.FileID, 0, len(kids))
	for child := range kids {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// DeleteRecord removes id and unlinks it from its parent.
func (s *MemoryRecordStore) DeleteRecord(ctx context.Context, id vfs.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	s.unlinkLocked(rec.Parent, id)
	delete(s.records, id)
	return nil
}

// SetRoot registers id under name.
func (s *MemoryRecordStore) SetRoot(ctx context.Context, name string, id vfs.FileID) error {
	if err := vfs.CheckID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.roots[name] = id
	return nil
}

// Root returns the root registered under name.
func (s *MemoryRecordStore) Root(ctx context.Context, name string) (vfs.FileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	id, ok := s.roots[name]
	if !ok {
		return 0, vfs.ErrRootNotFound
	}
	return id, nil
}

// Roots returns a copy of the root table.
func (s *MemoryRecordStore) Roots(ctx context.Context) (map[string]vfs.FileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]vfs.FileID, len(s.roots))
	for name, id := range s.roots {
		out[name] = id
	}
	return out, nil
}

// Close marks the store closed. Later calls fail with vfs.ErrStoreClosed.
func (s *MemoryRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ vfs.RecordStore = (*MemoryRecordStore)(nil)
