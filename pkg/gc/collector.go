// Package gc runs periodic value-log garbage collection on record stores.
//
// Persistent record stores append every record update to a log. Records
// rewritten by renames and moves, and records removed after invalidation,
// leave stale entries behind that are only reclaimed when the log files are
// rewritten. The collector triggers that rewrite in the background.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// GarbageCollectable is implemented by record stores with a reclaimable
// value log.
type GarbageCollectable interface {
	// RunValueLogGC rewrites log files holding at least discardRatio stale
	// data. It returns nil when nothing was worth rewriting.
	RunValueLogGC(ctx context.Context, discardRatio float64) error
}

// Collector performs periodic garbage collection on a record store.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store  GarbageCollectable
	config Config

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	runs   uint64
	failed uint64
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether periodic collection is active
	Enabled bool

	// Interval is how often to run garbage collection (default: 5m)
	Interval time.Duration

	// DiscardRatio is passed to the store on every run (default: 0.5)
	DiscardRatio float64

	// Timeout bounds a single run (default: 10m)
	Timeout time.Duration
}

// NewCollector creates a garbage collector for records.
//
// The collector is not started. Call Start to begin background collection.
// An error is returned when records has no value log to collect.
func NewCollector(records vfs.RecordStore, config Config) (*Collector, error) {
	store, ok := records.(GarbageCollectable)
	if !ok {
		return nil, fmt.Errorf("record store %T does not implement GarbageCollectable", records)
	}

	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.DiscardRatio <= 0 || config.DiscardRatio >= 1 {
		config.DiscardRatio = 0.5
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}

	return &Collector{
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins background garbage collection. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true

	logger.Info("Starting garbage collector: interval=%s discard_ratio=%.2f",
		c.config.Interval, c.config.DiscardRatio)

	go c.worker()
}

// Stop stops the collector and waits for an in-progress run to finish, or
// for ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	close(c.stopCh)
	c.mu.Unlock()

	if !started {
		return nil
	}

	logger.Info("Stopping garbage collector...")

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// Runs returns the number of completed and failed runs so far.
func (c *Collector) Runs() (completed, failed uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs, c.failed
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Debug("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		StartTime:    time.Now(),
		DiscardRatio: c.config.DiscardRatio,
	}

	err := c.store.RunValueLogGC(ctx, c.config.DiscardRatio)
	stats.EndTime = time.Now()

	c.mu.Lock()
	if err != nil {
		c.failed++
	} else {
		c.runs++
	}
	c.mu.Unlock()

	if err != nil {
		return stats, fmt.Errorf("value log gc: %w", err)
	}
	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime    time.Time
	EndTime      time.Time
	DiscardRatio float64
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("discard_ratio=%.2f duration=%s", s.DiscardRatio, s.Duration())
}
