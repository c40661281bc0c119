// Package loader populates a cache and its record store from a directory on
// the local file system.
package loader

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/ratelimiter"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/marmos91/dittovfs/pkg/vfs/cache"
	"github.com/pkg/errors"
)

// Result summarizes a Load.
type Result struct {
	Root        *cache.Handle
	Directories int
	Files       int
	Skipped     int
	Duration    time.Duration
}

// Option configures a Load.
type Option func(*options)

type options struct {
	limiter *ratelimiter.RateLimiter
}

// WithRateLimit throttles the walk to the rate of limiter. A nil limiter
// leaves the walk unthrottled.
func WithRateLimit(limiter *ratelimiter.RateLimiter) Option {
	return func(o *options) { o.limiter = limiter }
}

// Load walks the tree under dir and loads every entry into c.
//
// The root is registered in the record store under its absolute path. Every
// entry gets a fresh id and a durable record before its slot is initialized.
// The whole walk runs inside one write window. Entries that can not be read,
// and entries whose name collides with an already loaded sibling, are logged
// and skipped before anything is written for them.
func Load(ctx context.Context, c *cache.Cache, dir string, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %q", dir)
	}
	records := c.Records()
	start := time.Now()

	rootID, err := records.AllocateID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "allocate root id")
	}
	rootName, err := records.EnsureName(ctx, abs)
	if err != nil {
		return nil, errors.Wrapf(err, "intern root name %q", abs)
	}
	if err := records.PutRecord(ctx, vfs.Record{ID: rootID, NameID: rootName, Directory: true}); err != nil {
		return nil, errors.Wrapf(err, "store root record %d", rootID)
	}
	if err := records.SetRoot(ctx, abs, rootID); err != nil {
		return nil, errors.Wrapf(err, "register root %q", abs)
	}
	root, err := c.InitRoot(ctx, rootID, abs)
	if err != nil {
		return nil, err
	}

	res := &Result{Root: root, Directories: 1}
	dirs := map[string]*cache.Handle{abs: root}

	err = c.WithWrite(func(w *cache.Window) error {
		return filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
			if path == abs {
				return walkErr
			}
			if walkErr != nil {
				logger.Warn("Skipping %s: %v", path, walkErr)
				res.Skipped++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			parent, ok := dirs[filepath.Dir(path)]
			if !ok {
				return vfs.NewConsistencyError(0, "parent directory was not loaded").
					WithDetail("path", path)
			}
			// names that only differ by case collide in a case-insensitive cache
			existing, err := c.FindChild(parent, d.Name())
			if err != nil {
				return errors.Wrapf(err, "look up %s", path)
			}
			if existing != nil {
				logger.Warn("Skipping %s: name collides with id=%d", path, existing.ID())
				res.Skipped++
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			h, err := loadEntry(ctx, c, parent, d)
			if err != nil {
				return errors.Wrapf(err, "load %s", path)
			}
			if d.IsDir() {
				dirs[path] = h
				res.Directories++
			} else {
				res.Files++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, h := range dirs {
		if err := c.MarkAllChildrenLoaded(h); err != nil {
			return nil, err
		}
	}
	res.Duration = time.Since(start)
	logger.Info("Loaded %s: %d directories, %d files, %d skipped in %s",
		abs, res.Directories, res.Files, res.Skipped, res.Duration)
	return res, nil
}

func loadEntry(ctx context.Context, c *cache.Cache, parent *cache.Handle, d fs.DirEntry) (*cache.Handle, error) {
	records := c.Records()
	id, err := records.AllocateID(ctx)
	if err != nil {
		return nil, err
	}
	nameID, err := records.EnsureName(ctx, d.Name())
	if err != nil {
		return nil, err
	}
	rec := vfs.Record{ID: id, Parent: parent.ID(), NameID: nameID, Directory: d.IsDir()}
	if err := records.PutRecord(ctx, rec); err != nil {
		return nil, err
	}

	h, err := c.InitChild(parent, cache.ChildSpec{
		ID:        id,
		NameID:    nameID,
		Name:      d.Name(),
		Directory: d.IsDir(),
		Flags:     flagsOf(d),
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.IncrementModificationStamp(); err != nil {
		return nil, err
	}
	return h, nil
}

// flagsOf derives cache flags from directory entry metadata.
func flagsOf(d fs.DirEntry) vfs.Flags {
	var flags vfs.Flags
	if strings.HasPrefix(d.Name(), ".") {
		flags |= vfs.FlagHidden
	}
	mode := d.Type()
	if mode&fs.ModeSymlink != 0 {
		flags |= vfs.FlagSymlink
	}
	if mode&(fs.ModeDevice|fs.ModeNamedPipe|fs.ModeSocket|fs.ModeCharDevice) != 0 {
		flags |= vfs.FlagSpecial
	}
	if info, err := d.Info(); err == nil && info.Mode().Perm()&0o200 != 0 {
		flags |= vfs.FlagWritable
	}
	return flags
}
