package metrics

import (
	"testing"
	"time"

	"github.com/marmos91/dittovfs/pkg/vfs/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newCacheMetrics(reg)

	m.RecordSegmentCreated()
	m.RecordResolve(cache.ResolveCached)
	m.RecordResolve(cache.ResolveCached)
	m.RecordResolve(cache.ResolveDead)
	m.RecordInvalidation()
	m.RecordReparent()
	m.RecordCASRetry("flags")
	m.RecordCleanup(3, 2*time.Millisecond)
	m.RecordCleanup(0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.segmentsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolves.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolves.WithLabelValues("dead")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reparents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.casRetries.WithLabelValues("flags")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cleanedIDs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.windowsCompleted))

	// empty windows are not observed in the latency histogram
	n, err := testutil.GatherAndCount(reg, "dittovfs_cache_cleanup_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewCacheMetricsDisabled(t *testing.T) {
	if IsEnabled() {
		t.Skip("global registry already initialized")
	}
	assert.Nil(t, NewCacheMetrics())
}
