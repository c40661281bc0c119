package cache

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// NameLookup returns the current name of a file.
type NameLookup func(id vfs.FileID) (string, error)

// DirectoryRecord is the payload of a directory slot.
//
// The children array is sorted by name and never modified after being
// published: every change installs a new array. Compound operations that
// read the children and then change them must hold Lock. The record only
// synchronizes the user map (by compare-and-swap) and the adopted name set
// (by its own mutex) on its own.
type DirectoryRecord struct {
	mu  sync.Mutex
	cmp NameComparator

	userMap           atomic.Pointer[vfs.UserMap]
	children          atomic.Pointer[[]vfs.FileID]
	allChildrenLoaded atomic.Bool

	// created lazily under mu
	adopted atomic.Pointer[adoptedNames]
}

type adoptedNames struct {
	mu    sync.Mutex
	names map[string]string // comparator key -> original name
}

// NewDirectoryRecord creates an empty record ordering children with cmp.
func NewDirectoryRecord(cmp NameComparator) *DirectoryRecord {
	d := &DirectoryRecord{cmp: cmp}
	d.userMap.Store(vfs.EmptyUserMap)
	empty := []vfs.FileID{}
	d.children.Store(&empty)
	return d
}

// Lock acquires the record for a read-then-mutate sequence.
func (d *DirectoryRecord) Lock() { d.mu.Lock() }

// Unlock releases the record.
func (d *DirectoryRecord) Unlock() { d.mu.Unlock() }

// Comparator returns the name ordering of the children.
func (d *DirectoryRecord) Comparator() NameComparator { return d.cmp }

// UserMap returns the user map of the directory itself.
func (d *DirectoryRecord) UserMap() *vfs.UserMap {
	return d.userMap.Load()
}

// ChangeUserMap installs next if the current map is old. Callers retry with
// a freshly read map when it returns false.
func (d *DirectoryRecord) ChangeUserMap(old, next *vfs.UserMap) bool {
	return d.userMap.CompareAndSwap(old, next)
}

func (d *DirectoryRecord) ids() []vfs.FileID {
	return *d.children.Load()
}

// Children returns a copy of the child ids in name order.
func (d *DirectoryRecord) Children() []vfs.FileID {
	return slices.Clone(d.ids())
}

// ChildCount returns the number of known children.
func (d *DirectoryRecord) ChildCount() int {
	return len(d.ids())
}

// SetChildren replaces the children with ids, sorted by name. Two children
// with the same name are a consistency error.
func (d *DirectoryRecord) SetChildren(ids []vfs.FileID, names NameLookup) error {
	type named struct {
		id  vfs.FileID
		key string
	}
	entries := make([]named, len(ids))
	for i, id := range ids {
		name, err := names(id)
		if err != nil {
			return err
		}
		entries[i] = named{id: id, key: d.cmp.Key(name)}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	sorted := make([]vfs.FileID, len(entries))
	for i, e := range entries {
		if i > 0 && entries[i-1].key == e.key {
			return vfs.NewConsistencyError(e.id, "duplicate child name").
				WithDetail("name", e.key).
				WithDetail("other", entries[i-1].id)
		}
		sorted[i] = e.id
	}
	d.children.Store(&sorted)
	return nil
}

// FindChildIndex binary searches the children for name. It returns the
// index where name is or would be inserted, and whether it is present.
func (d *DirectoryRecord) FindChildIndex(name string, names NameLookup) (int, bool, error) {
	ids := d.ids()
	key := d.cmp.Key(name)
	var lookupErr error
	idx := sort.Search(len(ids), func(i int) bool {
		if lookupErr != nil {
			return true
		}
		childName, err := names(ids[i])
		if err != nil {
			lookupErr = err
			return true
		}
		return d.cmp.Key(childName) >= key
	})
	if lookupErr != nil {
		return 0, false, lookupErr
	}
	if idx < len(ids) {
		childName, err := names(ids[idx])
		if err != nil {
			return 0, false, err
		}
		if d.cmp.Key(childName) == key {
			return idx, true, nil
		}
	}
	return idx, false, nil
}

// ChildID returns the id of the child called name, if known.
func (d *DirectoryRecord) ChildID(name string, names NameLookup) (vfs.FileID, bool, error) {
	ids := d.ids()
	idx, found, err := d.FindChildIndex(name, names)
	if err != nil || !found || idx >= len(ids) {
		return 0, false, err
	}
	return ids[idx], true, nil
}

// InsertChild adds id under name at its sorted position.
func (d *DirectoryRecord) InsertChild(id vfs.FileID, name string, names NameLookup) error {
	idx, found, err := d.FindChildIndex(name, names)
	if err != nil {
		return err
	}
	if found {
		return vfs.NewConsistencyError(id, "a child with this name already exists").
			WithDetail("name", name).
			WithDetail("existing", d.ids()[idx])
	}
	d.insertAt(idx, id)
	return nil
}

// insertAt puts id at position idx, as returned by FindChildIndex under the
// same lock. It can not fail.
func (d *DirectoryRecord) insertAt(idx int, id vfs.FileID) {
	next := slices.Insert(slices.Clone(d.ids()), idx, id)
	d.children.Store(&next)
}

// RemoveChild drops id from the children and reports whether it was there.
func (d *DirectoryRecord) RemoveChild(id vfs.FileID) bool {
	ids := d.ids()
	i := slices.Index(ids, id)
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(ids), i, i+1)
	d.children.Store(&next)
	return true
}

// AllChildrenLoaded reports whether every child has been discovered.
func (d *DirectoryRecord) AllChildrenLoaded() bool {
	return d.allChildrenLoaded.Load()
}

// SetAllChildrenLoaded marks the children as complete. It is never reset.
func (d *DirectoryRecord) SetAllChildrenLoaded() {
	d.allChildrenLoaded.Store(true)
}

// IsAdoptedName reports whether name was removed and must be treated as
// absent until the removal is confirmed.
func (d *DirectoryRecord) IsAdoptedName(name string) bool {
	a := d.adopted.Load()
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.names[d.cmp.Key(name)]
	return ok
}

// AddAdoptedName marks name as provisionally absent. Callers hold Lock.
func (d *DirectoryRecord) AddAdoptedName(name string) {
	a := d.adoptedSet()
	a.mu.Lock()
	a.names[d.cmp.Key(name)] = name
	a.mu.Unlock()
}

// AddAdoptedNames marks several names at once. Callers hold Lock.
func (d *DirectoryRecord) AddAdoptedNames(names []string) {
	if len(names) == 0 {
		return
	}
	a := d.adoptedSet()
	a.mu.Lock()
	for _, name := range names {
		a.names[d.cmp.Key(name)] = name
	}
	a.mu.Unlock()
}

// RemoveAdoptedName forgets name. It must be called before a new child with
// the same name is inserted, or lookups would miss the new child.
func (d *DirectoryRecord) RemoveAdoptedName(name string) {
	a := d.adopted.Load()
	if a == nil {
		return
	}
	a.mu.Lock()
	delete(a.names, d.cmp.Key(name))
	a.mu.Unlock()
}

// ClearAdoptedNames forgets every adopted name. Callers hold Lock.
func (d *DirectoryRecord) ClearAdoptedNames() {
	d.adopted.Store(nil)
}

// AdoptedNames returns the adopted names, sorted, or nil if there are none.
func (d *DirectoryRecord) AdoptedNames() []string {
	a := d.adopted.Load()
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.names) == 0 {
		return nil
	}
	out := make([]string, 0, len(a.names))
	for _, name := range a.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d *DirectoryRecord) adoptedSet() *adoptedNames {
	if a := d.adopted.Load(); a != nil {
		return a
	}
	a := &adoptedNames{names: make(map[string]string)}
	if d.adopted.CompareAndSwap(nil, a) {
		return a
	}
	return d.adopted.Load()
}

// FileChildren resolves every child id to a handle. A child that is listed
// but not loaded is a consistency error.
func (d *DirectoryRecord) FileChildren(parent *Handle, cacheHint bool) ([]*Handle, error) {
	ids := d.ids()
	out := make([]*Handle, len(ids))
	for i, id := range ids {
		child, err := parent.sess.resolver.Resolve(id, parent, cacheHint)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, vfs.NewConsistencyError(id, "child listed but not loaded").
				WithDetail("parentId", parent.ID())
		}
		out[i] = child
	}
	return out, nil
}
