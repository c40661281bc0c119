package cache

import "time"

// ResolveResult is the outcome of a handle resolution.
type ResolveResult int

const (
	// ResolveCached means the registered directory handle was returned.
	ResolveCached ResolveResult = iota
	ResolveDirectory
	ResolveFile
	// ResolveNotLoaded means the slot was empty.
	ResolveNotLoaded
	ResolveDead
)

func (r ResolveResult) String() string {
	switch r {
	case ResolveCached:
		return "cached"
	case ResolveDirectory:
		return "directory"
	case ResolveFile:
		return "file"
	case ResolveNotLoaded:
		return "not_loaded"
	case ResolveDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CacheMetrics records cache activity. Implementations must be safe for
// concurrent use. A nil CacheMetrics passed to WithMetrics means no metrics.
type CacheMetrics interface {
	RecordSegmentCreated()
	RecordResolve(result ResolveResult)
	RecordInvalidation()
	// RecordCleanup is called when a top-level write window closes.
	RecordCleanup(count int, duration time.Duration)
	RecordReparent()
	RecordCASRetry(kind string)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordSegmentCreated()            {}
func (noopCacheMetrics) RecordResolve(ResolveResult)      {}
func (noopCacheMetrics) RecordInvalidation()              {}
func (noopCacheMetrics) RecordCleanup(int, time.Duration) {}
func (noopCacheMetrics) RecordReparent()                  {}
func (noopCacheMetrics) RecordCASRetry(string)            {}
