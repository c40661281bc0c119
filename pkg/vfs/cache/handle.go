package cache

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Handle is a short lived view of one file: its id, the segment holding its
// slot, and its parent.
//
// Several handles may exist for the same id at once. Compare them with
// Equal, never with ==.
type Handle struct {
	id   vfs.FileID
	sess *session

	segment atomic.Pointer[Segment]
	parent  atomic.Pointer[Handle]

	// nil for plain files
	dir *DirectoryRecord
}

// ID returns the file id.
func (h *Handle) ID() vfs.FileID { return h.id }

// IsDirectory reports whether the handle refers to a directory.
func (h *Handle) IsDirectory() bool { return h.dir != nil }

// Directory returns the directory record, or nil for plain files.
func (h *Handle) Directory() *DirectoryRecord { return h.dir }

// Equal reports whether both handles refer to the same file of the same
// session.
func (h *Handle) Equal(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.id == other.id && h.sess == other.sess
}

// segmentNow returns the current segment of the file, following reparent
// replacements. When the segment was superseded the recorded parent, if
// any, becomes the handle's parent.
func (h *Handle) segmentNow() *Segment {
	seg := h.segment.Load()
	if seg.replacement.Load() == nil {
		return seg
	}
	latest := seg.latest()
	if p, ok := h.sess.reparents.Lookup(h.id); ok {
		h.parent.Store(p)
	}
	h.segment.CompareAndSwap(seg, latest)
	return latest
}

// Segment returns the segment the handle currently reads from.
func (h *Handle) Segment() *Segment { return h.segmentNow() }

func (h *Handle) live() (*Segment, error) {
	if h.sess != h.sess.cache.current() {
		return nil, h.invalid()
	}
	seg := h.segmentNow()
	if seg.State(h.id) == SlotDead {
		return nil, h.invalid()
	}
	return seg, nil
}

func (h *Handle) invalid() *vfs.InvalidHandleError {
	return (&vfs.InvalidHandleError{ID: h.id}).WithPath(h.describe())
}

// Parent returns the parent handle, or nil for roots.
func (h *Handle) Parent() *Handle {
	h.segmentNow()
	return h.parent.Load()
}

// IsValid reports whether the file belongs to the current session and has
// not been invalidated.
func (h *Handle) IsValid() bool {
	if h.sess != h.sess.cache.current() {
		return false
	}
	return h.sess.tracker.IsLive(h.id) && h.segmentNow().State(h.id) == SlotLive
}

// NameID returns the interned name id.
func (h *Handle) NameID() (vfs.NameID, error) {
	seg, err := h.live()
	if err != nil {
		return 0, err
	}
	return seg.NameID(h.id), nil
}

// Name returns the file name.
func (h *Handle) Name() (string, error) {
	nameID, err := h.NameID()
	if err != nil {
		return "", err
	}
	return h.sess.cache.nameOf(nameID)
}

// Path returns the slash separated names from the root down to the file.
func (h *Handle) Path() (string, error) {
	if _, err := h.live(); err != nil {
		return "", err
	}
	return h.describe(), nil
}

// describe builds a best effort path, also for dead files.
func (h *Handle) describe() string {
	var parts []string
	seen := 0
	for cur := h; cur != nil && seen < 4096; cur = cur.parent.Load() {
		seg := cur.segment.Load().latest()
		name, err := cur.sess.cache.nameOf(seg.NameID(cur.id))
		if err != nil {
			name = fmt.Sprintf("<#%d>", cur.id)
		}
		parts = append(parts, name)
		seen++
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return joinPath(parts)
}

func joinPath(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	root := parts[0]
	rest := strings.Join(parts[1:], "/")
	switch {
	case rest == "":
		return root
	case strings.HasSuffix(root, "/"):
		return root + rest
	}
	return root + "/" + rest
}

// Flag reports whether every bit of mask is set. An empty mask or one with
// stamp bits is an ArgumentError.
func (h *Handle) Flag(mask vfs.Flags) (bool, error) {
	seg, err := h.live()
	if err != nil {
		return false, err
	}
	return seg.CheckedFlag(h.id, mask)
}

// Flags returns every flag bit of the file.
func (h *Handle) Flags() (vfs.Flags, error) {
	seg, err := h.live()
	if err != nil {
		return 0, err
	}
	return seg.Flags(h.id) & vfs.AllFlagsMask, nil
}

// SetFlag sets or clears mask.
func (h *Handle) SetFlag(mask vfs.Flags, value bool) error {
	seg, err := h.live()
	if err != nil {
		return err
	}
	return seg.SetFlag(h.id, mask, value)
}

// SetFlags replaces the bits selected by mask with value.
func (h *Handle) SetFlags(mask, value vfs.Flags) error {
	seg, err := h.live()
	if err != nil {
		return err
	}
	return seg.SetFlags(h.id, mask, value)
}

// ModificationStamp returns the stamp bits of the file.
func (h *Handle) ModificationStamp() (uint32, error) {
	seg, err := h.live()
	if err != nil {
		return 0, err
	}
	return seg.ModificationStamp(h.id), nil
}

// SetModificationStamp stores stamp without touching the flags.
func (h *Handle) SetModificationStamp(stamp uint32) error {
	seg, err := h.live()
	if err != nil {
		return err
	}
	seg.SetModificationStamp(h.id, stamp)
	return nil
}

// IncrementModificationStamp sets the stamp to the next value of the cache
// wide counter and returns it.
func (h *Handle) IncrementModificationStamp() (uint32, error) {
	seg, err := h.live()
	if err != nil {
		return 0, err
	}
	stamp := vfs.StampFromCounter(h.sess.cache.stamps.Add(1))
	seg.SetModificationStamp(h.id, stamp)
	return stamp, nil
}

// UserData returns the value attached under key.
func (h *Handle) UserData(key *vfs.Key) (any, error) {
	seg, err := h.live()
	if err != nil {
		return nil, err
	}
	m, err := seg.UserMap(h.id)
	if err != nil {
		return nil, err
	}
	v, _ := m.Get(key)
	return v, nil
}

// PutUserData attaches value under key. A nil value removes the key.
func (h *Handle) PutUserData(key *vfs.Key, value any) error {
	for {
		seg, err := h.live()
		if err != nil {
			return err
		}
		old, err := seg.UserMap(h.id)
		if err != nil {
			return err
		}
		next := old.With(key, value)
		if next == old {
			return nil
		}
		ok, err := seg.ChangeUserMap(h.id, old, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		h.sess.cache.metrics.RecordCASRetry("user_map")
	}
}

// Children resolves the known children of a directory, in name order.
func (h *Handle) Children(cacheHint bool) ([]*Handle, error) {
	if h.dir == nil {
		return nil, &vfs.ArgumentError{Arg: "handle", Value: "not a directory"}
	}
	if _, err := h.live(); err != nil {
		return nil, err
	}
	return h.dir.FileChildren(h, cacheHint)
}

func (h *Handle) String() string {
	kind := "file"
	if h.dir != nil {
		kind = "dir"
	}
	return fmt.Sprintf("%s(%d %s)", kind, h.id, h.describe())
}
