// Package metrics exposes Prometheus metrics for the DittoVFS cache.
//
// Metrics are optional. When InitRegistry has not been called the
// constructors return nil and the cache falls back to its no-op recorder.
//
// Usage:
//
//	metrics.InitRegistry()
//	c, err := cache.New(cfg, records, cache.WithMetrics(metrics.NewCacheMetrics()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry, with Go runtime and process
// collectors attached. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true once InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
