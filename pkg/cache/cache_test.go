package cache_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
)

func TestLRUEvicts(t *testing.T) {
	t.Parallel()

	c := cache.NewLRU(10)

	c.Put("a", []byte("12345"))
	c.Put("b", []byte("12345"))
	c.Put("c", []byte("12345"))

	_, okA := c.Get("a")
	_, okC := c.Get("c")

	assert.False(t, okA)
	assert.True(t, okC)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(10), stats.CurrentSize)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.001)
}

func TestLRUIgnoresOversized(t *testing.T) {
	t.Parallel()

	c := cache.NewLRU(4)
	c.Put("big", []byte("12345"))

	_, ok := c.Get("big")
	assert.False(t, ok)
}

func TestLRUReplace(t *testing.T) {
	t.Parallel()

	c := cache.NewLRU(100)
	c.Put("k", []byte("one"))
	c.Put("k", []byte("three"))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "three", string(v))
	assert.Equal(t, int64(5), c.Stats().CurrentSize)
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestLRUReadKeepsEntry(t *testing.T) {
	t.Parallel()

	c := cache.NewLRU(10)
	c.Put("a", []byte("12345"))
	c.Put("b", []byte("12345"))

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", []byte("12345"))

	_, okA := c.Get("a")
	_, okB := c.Get("b")

	assert.True(t, okA)
	assert.False(t, okB)
}

func TestKeySeparatesParts(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, cache.Key([]byte("ab"), []byte("c")), cache.Key([]byte("a"), []byte("bc")))
	assert.Equal(t, cache.Key([]byte("x")), cache.Key([]byte("x")))
	assert.Len(t, cache.Key(), 64)
}

func TestStoreDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	key := cache.Key([]byte("header"))
	value := bytes.Repeat([]byte("class Foo {};\n"), 100)

	require.NoError(t, cache.NewStore(dir, 1024*1024).Put(key, value))

	// A fresh store only has the disk copy.
	fresh := cache.NewStore(dir, 1024*1024)

	got, ok := fresh.Get(key)
	require.True(t, ok)
	assert.Equal(t, value, got)

	_, ok = fresh.Get(cache.Key([]byte("other")))
	assert.False(t, ok)
}

func TestStoreMemoryOnly(t *testing.T) {
	t.Parallel()

	s := cache.NewStore("", 0)
	require.NoError(t, s.Put("k1", []byte("v")))

	got, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, int64(1), s.Stats().Hits)
}
