package cache

import (
	"context"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Resolver turns file ids into handles.
//
// Directory handles are deduplicated through a DirectoryCache. Plain file
// handles are built on demand and never registered: handles compare by id,
// so several may coexist.
type Resolver struct {
	sess    *session
	dirs    DirectoryCache
	metrics CacheMetrics
}

// Resolve returns the handle of id, a child of parent.
//
// It returns a nil handle and a nil error when the file is not loaded yet.
// A dead file yields an InvalidHandleError. When cacheHint is set, a newly
// built directory handle becomes the registered one.
func (r *Resolver) Resolve(id vfs.FileID, parent *Handle, cacheHint bool) (*Handle, error) {
	if err := vfs.CheckID(id); err != nil {
		return nil, err
	}
	if h := r.dirs.Get(id); h != nil {
		if h.segmentNow().State(id) != SlotDead {
			r.metrics.RecordResolve(ResolveCached)
			return h, nil
		}
		r.dirs.Remove(id)
	}

	seg := r.sess.store.Segment(id)
	if seg == nil {
		r.metrics.RecordResolve(ResolveNotLoaded)
		return nil, nil
	}
	sl := seg.load(id)
	if sl == nil {
		r.metrics.RecordResolve(ResolveNotLoaded)
		return nil, nil
	}
	if sl.state == SlotDead {
		r.metrics.RecordResolve(ResolveDead)
		return nil, &vfs.InvalidHandleError{ID: id, Path: r.sess.cache.describeChild(parent, seg.NameID(id))}
	}

	nameID := seg.NameID(id)
	if !nameID.Valid() {
		return nil, r.nameConsistencyError(id, nameID, sl, parent)
	}

	if dir := sl.payload.Directory; dir != nil {
		r.metrics.RecordResolve(ResolveDirectory)
		h := r.sess.newHandle(id, seg, parent, dir)
		if cacheHint {
			return r.dirs.GetOrPut(h), nil
		}
		if cached := r.dirs.Get(id); cached != nil {
			return cached, nil
		}
		return h, nil
	}

	r.metrics.RecordResolve(ResolveFile)
	return r.sess.newHandle(id, seg, parent, nil), nil
}

func (r *Resolver) nameConsistencyError(id vfs.FileID, nameID vfs.NameID, sl *slot, parent *Handle) error {
	err := vfs.NewConsistencyError(id, "non-positive name id").
		WithDetail("nameId", nameID).
		WithDetail("data", sl.String())
	if parent != nil {
		err = err.WithDetail("parentId", parent.ID())
	}
	if storeParent, perr := r.sess.cache.records.ParentOf(context.Background(), id); perr == nil {
		err = err.WithDetail("storeParentId", storeParent)
	}
	return err
}

// Cached returns the registered directory handle of id, or nil.
func (r *Resolver) Cached(id vfs.FileID) *Handle {
	return r.dirs.Get(id)
}
