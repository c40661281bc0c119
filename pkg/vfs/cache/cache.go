// Package cache holds the live metadata of a virtual file tree: names, flags,
// modification stamps, user data and directory children, keyed by file id.
//
// Per-file state lives in segments of SegmentSize slots. Reads are lock
// free. Structural changes go through an exclusive write Window; files
// invalidated inside a window stay readable until the window closes, at
// which point deletion observers run and the slots are marked dead.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/pkg/errors"
)

// Config configures a Cache.
type Config struct {
	// CaseSensitive selects the name comparator ordering children.
	CaseSensitive bool

	// DirectoryCacheSize bounds the registry of directory handles.
	// Zero means DefaultDirectoryCacheSize.
	DirectoryCacheSize int
}

// Option customizes a Cache.
type Option func(*Cache)

// WithMetrics records cache activity into m. A nil m disables metrics.
func WithMetrics(m CacheMetrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithDirectoryCache replaces the LRU registry of directory handles.
func WithDirectoryCache(factory DirectoryCacheFactory) Option {
	return func(c *Cache) {
		if factory != nil {
			c.newDirs = factory
		}
	}
}

// session is everything that Reset throws away.
type session struct {
	id        uuid.UUID
	cache     *Cache
	store     *Store
	reparents *ReparentIndex
	tracker   *Tracker
	resolver  *Resolver
}

func (s *session) newHandle(id vfs.FileID, seg *Segment, parent *Handle, dir *DirectoryRecord) *Handle {
	h := &Handle{id: id, sess: s, dir: dir}
	h.segment.Store(seg)
	if parent != nil {
		h.parent.Store(parent)
	}
	return h
}

// Cache is the in-memory metadata cache in front of a vfs.RecordStore.
type Cache struct {
	cfg     Config
	records vfs.RecordStore
	cmp     NameComparator
	metrics CacheMetrics
	newDirs DirectoryCacheFactory

	sess atomic.Pointer[session]

	names  sync.Map // vfs.NameID -> string
	roots  sync.Map // vfs.FileID -> *Handle
	stamps atomic.Uint64

	writeMu sync.Mutex
	active  atomic.Pointer[Window]

	observersMu sync.RWMutex
	observers   []vfs.DeletionObserver
}

// New creates a cache backed by records.
func New(cfg Config, records vfs.RecordStore, opts ...Option) (*Cache, error) {
	if records == nil {
		return nil, &vfs.ArgumentError{Arg: "records", Value: nil}
	}
	if cfg.DirectoryCacheSize < 0 {
		return nil, &vfs.ArgumentError{Arg: "DirectoryCacheSize", Value: cfg.DirectoryCacheSize}
	}
	if cfg.DirectoryCacheSize == 0 {
		cfg.DirectoryCacheSize = DefaultDirectoryCacheSize
	}
	c := &Cache{
		cfg:     cfg,
		records: records,
		cmp:     NewNameComparator(cfg.CaseSensitive),
		metrics: noopCacheMetrics{},
		newDirs: NewLRUDirectoryCache,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess.Store(c.newSession())
	return c, nil
}

func (c *Cache) newSession() *session {
	s := &session{id: uuid.New(), cache: c}
	s.reparents = NewReparentIndex()
	s.store = NewStore(s.reparents, c.metrics)
	s.tracker = NewTracker(s.store, c.metrics)
	s.resolver = &Resolver{sess: s, dirs: c.newDirs(c.cfg.DirectoryCacheSize), metrics: c.metrics}
	return s
}

func (c *Cache) current() *session {
	return c.sess.Load()
}

// SessionID identifies the current session. It changes on Reset.
func (c *Cache) SessionID() uuid.UUID {
	return c.current().id
}

// Comparator returns the name ordering used for children.
func (c *Cache) Comparator() NameComparator { return c.cmp }

// Records returns the backing record store.
func (c *Cache) Records() vfs.RecordStore { return c.records }

// Store returns the segment store of the current session.
func (c *Cache) Store() *Store { return c.current().store }

// Tracker returns the invalidation tracker of the current session.
func (c *Cache) Tracker() *Tracker { return c.current().tracker }

// Resolver returns the identity resolver of the current session.
func (c *Cache) Resolver() *Resolver { return c.current().resolver }

// AddDeletionObserver registers o to be told about ids about to be cleaned.
func (c *Cache) AddDeletionObserver(o vfs.DeletionObserver) {
	c.observersMu.Lock()
	c.observers = append(c.observers, o)
	c.observersMu.Unlock()
}

func (c *Cache) deletionObservers() []vfs.DeletionObserver {
	c.observersMu.RLock()
	defer c.observersMu.RUnlock()
	return append([]vfs.DeletionObserver(nil), c.observers...)
}

// RegisterName makes name known for nameID without asking the record store.
func (c *Cache) RegisterName(nameID vfs.NameID, name string) {
	if nameID.Valid() {
		c.names.Store(nameID, name)
	}
}

func (c *Cache) nameOf(nameID vfs.NameID) (string, error) {
	if v, ok := c.names.Load(nameID); ok {
		return v.(string), nil
	}
	if !nameID.Valid() {
		return "", vfs.NewConsistencyError(0, "non-positive name id").WithDetail("nameId", nameID)
	}
	name, err := c.records.NameOf(context.Background(), nameID)
	if err != nil {
		return "", errors.Wrapf(err, "resolve name id %d", nameID)
	}
	c.names.Store(nameID, name)
	return name, nil
}

// NameOf returns the name of a loaded file. Dead files keep their name.
func (c *Cache) NameOf(id vfs.FileID) (string, error) {
	nameID, err := c.current().store.Name(id)
	if err != nil {
		return "", err
	}
	return c.nameOf(nameID)
}

func (c *Cache) childNames(sess *session) NameLookup {
	return func(id vfs.FileID) (string, error) {
		seg := sess.store.Segment(id)
		if seg == nil {
			return "", vfs.NewConsistencyError(id, "child has no segment")
		}
		return c.nameOf(seg.NameID(id))
	}
}

// describeChild is the best effort path of an unresolved child of parent.
func (c *Cache) describeChild(parent *Handle, nameID vfs.NameID) string {
	name, err := c.nameOf(nameID)
	if err != nil {
		name = "?"
	}
	if parent == nil {
		return name
	}
	return joinPath([]string{parent.describe(), name})
}

// InitRoot loads a root directory called name under id and registers it.
func (c *Cache) InitRoot(ctx context.Context, id vfs.FileID, name string) (*Handle, error) {
	nameID, err := c.records.EnsureName(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "intern root name %q", name)
	}
	c.RegisterName(nameID, name)

	sess := c.current()
	if err := sess.store.InitFile(id, nameID, Payload{Directory: NewDirectoryRecord(c.cmp)}); err != nil {
		return nil, c.describeInitError(err)
	}
	h, err := sess.resolver.Resolve(id, nil, true)
	if err != nil {
		return nil, err
	}
	c.roots.Store(id, h)
	logger.Debug("Initialized root %q as id=%d", name, id)
	return h, nil
}

// Root returns the root loaded under id.
func (c *Cache) Root(id vfs.FileID) (*Handle, bool) {
	v, ok := c.roots.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// Roots returns every loaded root.
func (c *Cache) Roots() []*Handle {
	var out []*Handle
	c.roots.Range(func(_, v any) bool {
		out = append(out, v.(*Handle))
		return true
	})
	return out
}

// ChildSpec describes a file being loaded under a directory.
type ChildSpec struct {
	ID     vfs.FileID
	NameID vfs.NameID

	// Name is optional; when empty it is read from the record store.
	Name      string
	Directory bool
	Flags     vfs.Flags
}

// InitChild loads a new child of parent and inserts it in the children in
// name order. An adopted name equal to the new name is forgotten first.
func (c *Cache) InitChild(parent *Handle, spec ChildSpec) (*Handle, error) {
	if err := c.checkLiveDirectory(parent); err != nil {
		return nil, err
	}
	sess := parent.sess
	if spec.Name != "" {
		c.RegisterName(spec.NameID, spec.Name)
	}
	name, err := c.nameOf(spec.NameID)
	if err != nil {
		return nil, err
	}
	names := c.childNames(sess)

	dir := parent.dir
	dir.Lock()
	defer dir.Unlock()

	idx, found, err := dir.FindChildIndex(name, names)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, vfs.NewConsistencyError(spec.ID, "a child with this name already exists").
			WithDetail("parentId", parent.ID()).
			WithDetail("name", name)
	}
	dir.RemoveAdoptedName(name)

	var p Payload
	if spec.Directory {
		p.Directory = NewDirectoryRecord(c.cmp)
	}
	if err := sess.store.InitFile(spec.ID, spec.NameID, p); err != nil {
		return nil, c.describeInitError(err)
	}
	seg := sess.store.Segment(spec.ID)
	if flags := spec.Flags & vfs.AllFlagsMask; flags != 0 {
		if err := seg.SetFlags(spec.ID, vfs.AllFlagsMask, flags); err != nil {
			return nil, err
		}
	}
	dir.insertAt(idx, spec.ID)

	h, err := sess.resolver.Resolve(spec.ID, parent, spec.Directory)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, vfs.NewConsistencyError(spec.ID, "initialized file did not resolve")
	}
	return h, nil
}

// FileByID resolves id under parent. See Resolver.Resolve.
func (c *Cache) FileByID(id vfs.FileID, parent *Handle, cacheHint bool) (*Handle, error) {
	return c.current().resolver.Resolve(id, parent, cacheHint)
}

// HasLoadedFile reports whether id has a slot, live or dead.
func (c *Cache) HasLoadedFile(id vfs.FileID) bool {
	return c.current().store.HasLoadedFile(id)
}

// IsLive reports whether id has not been invalidated in this session.
func (c *Cache) IsLive(id vfs.FileID) bool {
	return c.current().tracker.IsLive(id)
}

// FindChild returns the child of parent called name, or nil if it is not
// known or its name is adopted.
func (c *Cache) FindChild(parent *Handle, name string) (*Handle, error) {
	if err := c.checkDirectory(parent); err != nil {
		return nil, err
	}
	if parent.dir.IsAdoptedName(name) {
		return nil, nil
	}
	id, found, err := parent.dir.ChildID(name, c.childNames(parent.sess))
	if err != nil || !found {
		return nil, err
	}
	return parent.sess.resolver.Resolve(id, parent, false)
}

// Children resolves the children of parent in name order.
func (c *Cache) Children(parent *Handle, cacheHint bool) ([]*Handle, error) {
	if err := c.checkDirectory(parent); err != nil {
		return nil, err
	}
	return parent.Children(cacheHint)
}

// MarkAllChildrenLoaded records that every child of parent is loaded.
func (c *Cache) MarkAllChildrenLoaded(parent *Handle) error {
	if err := c.checkDirectory(parent); err != nil {
		return err
	}
	parent.dir.SetAllChildrenLoaded()
	return nil
}

// SetChildren replaces the children of parent. Every id must be loaded.
func (c *Cache) SetChildren(parent *Handle, ids []vfs.FileID) error {
	if err := c.checkLiveDirectory(parent); err != nil {
		return err
	}
	names := c.childNames(parent.sess)
	for _, id := range ids {
		if !parent.sess.store.HasLoadedFile(id) {
			return vfs.NewConsistencyError(id, "child listed but not loaded").
				WithDetail("parentId", parent.ID())
		}
	}
	parent.dir.Lock()
	defer parent.dir.Unlock()
	return parent.dir.SetChildren(ids, names)
}

// RemoveChild detaches child from parent, adopts its name and invalidates
// it along with its whole subtree.
func (c *Cache) RemoveChild(w *Window, parent, child *Handle) error {
	if err := c.requireWindow(w); err != nil {
		return err
	}
	if err := c.checkDirectory(parent); err != nil {
		return err
	}
	name, err := child.Name()
	if err != nil {
		return err
	}

	parent.dir.Lock()
	removed := parent.dir.RemoveChild(child.ID())
	if removed {
		parent.dir.AddAdoptedName(name)
	}
	parent.dir.Unlock()
	if !removed {
		return vfs.NewConsistencyError(child.ID(), "not a child of the directory").
			WithDetail("parentId", parent.ID())
	}
	return c.Invalidate(w, child)
}

// Invalidate marks the file and, for directories, every loaded descendant as
// pending cleanup. The data stays readable until the window closes.
func (c *Cache) Invalidate(w *Window, h *Handle) error {
	if err := c.requireWindow(w); err != nil {
		return err
	}
	if _, err := h.live(); err != nil {
		return err
	}
	n := c.invalidateTree(h.sess, h.ID())
	logger.Debug("Invalidated %d files under id=%d", n, h.ID())
	return nil
}

func (c *Cache) invalidateTree(sess *session, root vfs.FileID) int {
	count := 0
	stack := []vfs.FileID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !sess.tracker.Invalidate(id) {
			continue
		}
		count++
		p, state, err := sess.store.Payload(id)
		if err != nil || state != SlotLive || p.Directory == nil {
			continue
		}
		stack = append(stack, p.Directory.ids()...)
	}
	return count
}

// Move makes newParent the parent of h. The segment of h is superseded so
// that stale handles notice the move; the old segment stays readable.
func (c *Cache) Move(w *Window, h, newParent *Handle) error {
	if err := c.requireWindow(w); err != nil {
		return err
	}
	if err := c.checkLiveDirectory(newParent); err != nil {
		return err
	}
	seg, err := h.live()
	if err != nil {
		return err
	}
	oldParent := h.Parent()
	if oldParent == nil {
		return &vfs.ArgumentError{Arg: "handle", Value: "cannot move a root"}
	}
	for p := newParent; p != nil; p = p.Parent() {
		if p.Equal(h) {
			return &vfs.ArgumentError{Arg: "newParent", Value: "inside the moved directory"}
		}
	}
	if oldParent.Equal(newParent) {
		return nil
	}
	name, err := h.Name()
	if err != nil {
		return err
	}
	names := c.childNames(h.sess)

	newParent.dir.Lock()
	defer newParent.dir.Unlock()
	// every fallible step happens before the segment is superseded
	idx, found, err := newParent.dir.FindChildIndex(name, names)
	if err != nil {
		return err
	}
	if found {
		return vfs.NewConsistencyError(h.ID(), "target directory already has a child with this name").
			WithDetail("parentId", newParent.ID()).
			WithDetail("name", name)
	}

	next, err := seg.changeParent(h.ID(), newParent)
	if err != nil {
		return err
	}
	h.parent.Store(newParent)
	h.segment.Store(next)

	oldParent.dir.Lock()
	oldParent.dir.RemoveChild(h.ID())
	oldParent.dir.Unlock()
	newParent.dir.RemoveAdoptedName(name)
	newParent.dir.insertAt(idx, h.ID())
	return nil
}

// Rename gives h a new name, keeping its parent's children sorted.
func (c *Cache) Rename(w *Window, h *Handle, nameID vfs.NameID, name string) error {
	if err := c.requireWindow(w); err != nil {
		return err
	}
	seg, err := h.live()
	if err != nil {
		return err
	}
	if name != "" {
		c.RegisterName(nameID, name)
	}
	newName, err := c.nameOf(nameID)
	if err != nil {
		return err
	}

	parent := h.Parent()
	if parent == nil || parent.dir == nil {
		return seg.setNameID(h.ID(), nameID)
	}
	names := c.childNames(h.sess)
	dir := parent.dir
	dir.Lock()
	defer dir.Unlock()
	if id, found, err := dir.ChildID(newName, names); err != nil {
		return err
	} else if found && id != h.ID() {
		return vfs.NewConsistencyError(h.ID(), "a sibling already has this name").
			WithDetail("sibling", id).
			WithDetail("name", newName)
	}
	dir.RemoveChild(h.ID())
	if err := seg.setNameID(h.ID(), nameID); err != nil {
		return err
	}
	dir.RemoveAdoptedName(newName)
	return dir.InsertChild(h.ID(), newName, names)
}

func (c *Cache) checkDirectory(h *Handle) error {
	if h == nil {
		return &vfs.ArgumentError{Arg: "parent", Value: nil}
	}
	if h.dir == nil {
		return &vfs.ArgumentError{Arg: "parent", Value: "not a directory"}
	}
	_, err := h.live()
	return err
}

// checkLiveDirectory is checkDirectory for operations adding children: a
// directory invalidated in the open window is rejected too.
func (c *Cache) checkLiveDirectory(h *Handle) error {
	if err := c.checkDirectory(h); err != nil {
		return err
	}
	if !h.sess.tracker.IsLive(h.ID()) {
		return h.invalid()
	}
	return nil
}

// describeInitError fills in the name of an AlreadyInitializedError when it
// can be resolved.
func (c *Cache) describeInitError(err error) error {
	if ae, ok := vfs.AsAlreadyInitializedError(err); ok && ae.Name == "" {
		if name, nerr := c.nameOf(ae.NameID); nerr == nil {
			ae.Name = name
		}
	}
	return err
}

// Stats is a snapshot of cache counters.
type Stats struct {
	SessionID         string
	Segments          int
	CachedDirectories int
	PendingCleanup    int
	Invalidated       int
	ReparentedFiles   int
	DeletionObservers int
	WriteWindowOpen   bool
}

func (c *Cache) Stats() Stats {
	sess := c.current()
	return Stats{
		SessionID:         sess.id.String(),
		Segments:          sess.store.SegmentCount(),
		CachedDirectories: sess.resolver.dirs.Len(),
		PendingCleanup:    sess.tracker.PendingCount(),
		Invalidated:       sess.tracker.DeadCount(),
		ReparentedFiles:   sess.reparents.Len(),
		DeletionObservers: len(c.deletionObservers()),
		WriteWindowOpen:   c.active.Load() != nil,
	}
}

// Reset drops every loaded file and starts a new session. Handles of the
// previous session become invalid. It waits for the open window, so it must
// not be called from inside one.
func (c *Cache) Reset() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := c.sess.Swap(c.newSession())
	old.resolver.dirs.Purge()
	old.store.Reset()
	c.roots.Clear()
	logger.Info("Cache reset: session %s replaced by %s", old.id, c.SessionID())
}
