package cache

import (
	"sync"

	"github.com/bluele/gcache"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// DefaultDirectoryCacheSize bounds the number of registered directory handles.
const DefaultDirectoryCacheSize = 65536

// DirectoryCache registers the one advertised handle per directory id.
type DirectoryCache interface {
	// Get returns the registered handle for id, or nil.
	Get(id vfs.FileID) *Handle

	// GetOrPut registers h unless a handle for the same id is already
	// registered, and returns the registered one.
	GetOrPut(h *Handle) *Handle

	Remove(id vfs.FileID)
	Len() int
	Purge()
}

// DirectoryCacheFactory builds the registry of a new session.
type DirectoryCacheFactory func(size int) DirectoryCache

// lruDirectoryCache is a DirectoryCache evicting the least recently used
// handle once full. An evicted directory keeps working: the next resolution
// builds a new handle that compares equal to the old one.
type lruDirectoryCache struct {
	mu    sync.Mutex // makes GetOrPut atomic
	cache gcache.Cache
}

// NewLRUDirectoryCache creates a gcache backed registry holding at most size
// handles.
func NewLRUDirectoryCache(size int) DirectoryCache {
	if size <= 0 {
		size = DefaultDirectoryCacheSize
	}
	return &lruDirectoryCache{cache: gcache.New(size).LRU().Build()}
}

func (c *lruDirectoryCache) Get(id vfs.FileID) *Handle {
	v, err := c.cache.GetIFPresent(id)
	if err != nil || v == nil {
		return nil
	}
	return v.(*Handle)
}

func (c *lruDirectoryCache) GetOrPut(h *Handle) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, err := c.cache.GetIFPresent(h.ID()); err == nil && v != nil {
		return v.(*Handle)
	}
	_ = c.cache.Set(h.ID(), h)
	return h
}

func (c *lruDirectoryCache) Remove(id vfs.FileID) {
	c.mu.Lock()
	c.cache.Remove(id)
	c.mu.Unlock()
}

func (c *lruDirectoryCache) Len() int {
	return c.cache.Len(false)
}

func (c *lruDirectoryCache) Purge() {
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
}
