// Package cache keeps rendered headers so that a run over an unchanged tree
// does not parse them again.
package cache

import (
	"container/list"
	"sync"
)

// DefaultMaxBytes bounds an LRU created without a size.
const DefaultMaxBytes = 64 << 20

// LRU is a size-bounded in-memory cache of byte values. Once full, the
// least recently read or written values are dropped first. It is safe
// for concurrent use.
type LRU struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is the most recently used
	maxBytes int64
	size     int64
	hits     int64
	misses   int64
}

type lruEntry struct {
	key   string
	value []byte
}

// NewLRU creates an LRU holding at most maxBytes of values.
func NewLRU(maxBytes int64) *LRU {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &LRU{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		maxBytes: maxBytes,
	}
}

// Get returns the value stored under key. The slice must not be modified.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++

		return nil, false
	}

	c.hits++
	c.order.MoveToFront(el)

	return el.Value.(*lruEntry).value, true
}

// Put stores a copy of value under key. A value larger than the whole
// cache is not stored.
func (c *LRU) Put(key string, value []byte) {
	size := int64(len(value))
	if size > c.maxBytes {
		return
	}

	value = append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*lruEntry)
		c.size += size - int64(len(e.value))
		e.value = value
		c.order.MoveToFront(el)
	} else {
		c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})
		c.size += size
	}

	for c.size > c.maxBytes {
		oldest := c.order.Back()
		e := oldest.Value.(*lruEntry)

		c.order.Remove(oldest)
		delete(c.entries, e.key)
		c.size -= int64(len(e.value))
	}
}

// Stats returns a snapshot of the counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Entries:     len(c.entries),
		CurrentSize: c.size,
		MaxSize:     c.maxBytes,
	}
}

// Stats describes the use of a cache.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate is the share of reads that found a value, 0 before any read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}
