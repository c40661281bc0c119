package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/marmos91/dittovfs/pkg/vfs/memory"
	"github.com/stretchr/testify/require"
)

const rootID vfs.FileID = 1

type fixture struct {
	cache   *Cache
	records *memory.MemoryRecordStore
	root    *Handle
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, Config{CaseSensitive: true}, opts...)
}

func newFixtureWithConfig(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	records := memory.NewMemoryRecordStore()
	t.Cleanup(func() { _ = records.Close() })

	c, err := New(cfg, records, opts...)
	require.NoError(t, err)

	root, err := c.InitRoot(context.Background(), rootID, "/root")
	require.NoError(t, err)
	return &fixture{cache: c, records: records, root: root}
}

func (f *fixture) nameID(t *testing.T, name string) vfs.NameID {
	t.Helper()
	id, err := f.records.EnsureName(context.Background(), name)
	require.NoError(t, err)
	return id
}

func (f *fixture) addFile(t *testing.T, parent *Handle, id vfs.FileID, name string) *Handle {
	t.Helper()
	h, err := f.cache.InitChild(parent, ChildSpec{ID: id, NameID: f.nameID(t, name), Name: name})
	require.NoError(t, err)
	return h
}

func (f *fixture) addDir(t *testing.T, parent *Handle, id vfs.FileID, name string) *Handle {
	t.Helper()
	h, err := f.cache.InitChild(parent, ChildSpec{ID: id, NameID: f.nameID(t, name), Name: name, Directory: true})
	require.NoError(t, err)
	return h
}

func childNames(t *testing.T, dir *Handle) []string {
	t.Helper()
	kids, err := dir.Children(false)
	require.NoError(t, err)
	names := make([]string, len(kids))
	for i, k := range kids {
		names[i], err = k.Name()
		require.NoError(t, err)
	}
	return names
}

// recordingObserver remembers every batch it was given, along with the names
// it could still read at that point.
type recordingObserver struct {
	c       *Cache
	batches [][]vfs.FileID
	names   map[vfs.FileID]string
}

func (o *recordingObserver) BeforeCleanup(ids []vfs.FileID) {
	o.batches = append(o.batches, ids)
	if o.names == nil {
		o.names = make(map[vfs.FileID]string)
	}
	for _, id := range ids {
		if name, err := o.c.NameOf(id); err == nil {
			o.names[id] = name
		}
	}
}

type fakeMetrics struct {
	mu          sync.Mutex
	segments    int
	resolves    map[ResolveResult]int
	invalidated int
	cleaned     int
	cleanups    int
	reparents   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{resolves: make(map[ResolveResult]int)}
}

func (m *fakeMetrics) RecordSegmentCreated() {
	m.mu.Lock()
	m.segments++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordResolve(r ResolveResult) {
	m.mu.Lock()
	m.resolves[r]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordInvalidation() {
	m.mu.Lock()
	m.invalidated++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordCleanup(count int, _ time.Duration) {
	m.mu.Lock()
	m.cleaned += count
	m.cleanups++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordReparent() {
	m.mu.Lock()
	m.reparents++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordCASRetry(string) {}

func (m *fakeMetrics) resolved(r ResolveResult) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolves[r]
}
