package cache

import (
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDirectoryWithCacheHintReturnsSameHandle(t *testing.T) {
	m := newFakeMetrics()
	f := newFixture(t, WithMetrics(m))
	c := f.cache

	dir := NewDirectoryRecord(c.Comparator())
	require.NoError(t, c.Store().InitFile(5, f.nameID(t, "docs"), Payload{Directory: dir}))

	first, err := c.Resolver().Resolve(5, f.root, true)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := c.Resolver().Resolve(5, f.root, true)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, c.Resolver().Cached(5))
	assert.Same(t, dir, first.Directory())
	assert.Equal(t, 1, m.resolved(ResolveCached))

	// without the hint the registered handle is still preferred
	third, err := c.FileByID(5, f.root, false)
	require.NoError(t, err)
	assert.Same(t, first, third)
}

func TestResolveDirectoryWithoutCacheHint(t *testing.T) {
	f := newFixture(t)
	c := f.cache
	require.NoError(t, c.Store().InitFile(6, f.nameID(t, "tmp"), Payload{Directory: NewDirectoryRecord(c.Comparator())}))

	a, err := c.Resolver().Resolve(6, f.root, false)
	require.NoError(t, err)
	b, err := c.Resolver().Resolve(6, f.root, false)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
	assert.Nil(t, c.Resolver().Cached(6))
}

func TestResolvePlainFilesAreNotRegistered(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, f.root, 20, "notes.txt")

	again, err := f.cache.FileByID(20, f.root, true)
	require.NoError(t, err)
	assert.NotSame(t, file, again)
	assert.True(t, file.Equal(again))
	assert.False(t, again.IsDirectory())
	assert.Nil(t, f.cache.Resolver().Cached(20))
}

func TestResolveNotLoaded(t *testing.T) {
	m := newFakeMetrics()
	f := newFixture(t, WithMetrics(m))

	// no segment at all
	h, err := f.cache.FileByID(4096, f.root, false)
	assert.NoError(t, err)
	assert.Nil(t, h)

	// segment exists, slot empty
	h, err = f.cache.FileByID(30, f.root, false)
	assert.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, 2, m.resolved(ResolveNotLoaded))

	_, err = f.cache.FileByID(0, f.root, false)
	assert.Error(t, err)
}

func TestResolveRejectsNonPositiveNameID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Store().SetPayload(40, Payload{}))

	h, err := f.cache.FileByID(40, f.root, false)
	assert.Nil(t, h)
	ce, ok := vfs.AsConsistencyError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, vfs.FileID(40), ce.ID)
	assert.Equal(t, vfs.NameID(0), ce.Details()["nameId"])
	assert.Equal(t, rootID, ce.Details()["parentId"])
	assert.Contains(t, ce.Details(), "data")
}

func TestResolveDeadFile(t *testing.T) {
	m := newFakeMetrics()
	f := newFixture(t, WithMetrics(m))
	f.addFile(t, f.root, 50, "gone.txt")
	f.cache.Store().Segment(50).markDead(50)

	h, err := f.cache.FileByID(50, f.root, false)
	assert.Nil(t, h)
	ih, ok := vfs.AsInvalidHandleError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "/root/gone.txt", ih.Path)
	assert.Equal(t, 1, m.resolved(ResolveDead))
}

func TestResolveDropsDeadRegisteredDirectory(t *testing.T) {
	f := newFixture(t)
	dir := f.addDir(t, f.root, 60, "cache")
	require.Same(t, dir, f.cache.Resolver().Cached(60))

	f.cache.Store().Segment(60).markDead(60)
	_, err := f.cache.FileByID(60, f.root, true)
	assert.True(t, vfs.IsInvalidHandle(err))
	assert.Nil(t, f.cache.Resolver().Cached(60))
}
