package config

import (
	"github.com/marmos91/dittovfs/pkg/metrics"
	"github.com/marmos91/dittovfs/pkg/vfs/cache"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// CacheMetrics records cache activity (nil if disabled, the cache then
	// uses its no-op recorder)
	CacheMetrics cache.CacheMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed cache metrics
//
// If metrics are disabled an empty result is returned.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:       metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		CacheMetrics: metrics.NewCacheMetrics(),
	}
}
