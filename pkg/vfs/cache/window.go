package cache

import (
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Window is the exclusive write window of a Cache.
//
// Only one window is open at a time across the cache. Structural changes
// (invalidation, moves, renames, child removal) require an open window.
// Closing the outermost level notifies deletion observers with every id
// invalidated meanwhile and then marks their slots dead. From that point on
// any access to those files fails with an InvalidHandleError.
//
// A Window is used by the goroutine that opened it. Nested levels opened with
// Begin must each be closed with End.
type Window struct {
	c      *Cache
	depth  int
	opened time.Time
}

// BeginWrite blocks until no other window is open and opens a new one.
func (c *Cache) BeginWrite() *Window {
	c.writeMu.Lock()
	w := &Window{c: c, depth: 1, opened: time.Now()}
	c.active.Store(w)
	return w
}

// WithWrite runs fn inside a write window and closes it afterwards, also
// when fn fails.
func (c *Cache) WithWrite(fn func(w *Window) error) (err error) {
	w := c.BeginWrite()
	defer func() {
		if endErr := w.End(); err == nil {
			err = endErr
		}
	}()
	return fn(w)
}

// Begin opens a nested level of the window.
func (w *Window) Begin() *Window {
	w.depth++
	return w
}

// Depth returns the number of open levels.
func (w *Window) Depth() int { return w.depth }

// Open reports whether the window can still be used.
func (w *Window) Open() bool {
	return w != nil && w.depth > 0 && w.c.active.Load() == w
}

// End closes one level. Closing the last level runs deferred cleanup and
// releases the cache for the next writer.
func (w *Window) End() error {
	if !w.Open() {
		return vfs.NewConsistencyError(0, "write window closed twice")
	}
	w.depth--
	if w.depth > 0 {
		return nil
	}

	defer w.c.writeMu.Unlock()
	defer w.c.active.Store(nil)
	w.c.finishWindow()
	logger.Debug("Write window closed after %s", time.Since(w.opened))
	return nil
}

// finishWindow lets deletion observers inspect the pending ids, then kills
// them.
func (c *Cache) finishWindow() {
	sess := c.current()
	pending := sess.tracker.Pending()
	if len(pending) > 0 {
		for _, o := range c.deletionObservers() {
			o.BeforeCleanup(pending)
		}
	}

	start := time.Now()
	cleaned := sess.tracker.RunDeferredCleanup()
	for _, id := range cleaned {
		sess.resolver.dirs.Remove(id)
		c.roots.Delete(id)
	}
	c.metrics.RecordCleanup(len(cleaned), time.Since(start))
}

func (c *Cache) requireWindow(w *Window) error {
	if !w.Open() || w.c != c {
		return vfs.NewConsistencyError(0, "operation requires an open write window")
	}
	return nil
}
