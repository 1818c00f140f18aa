package cache

import (
	"sync"
	"time"
)

// LRUCache is a fixed-size cache with per-entry TTL. Reads refresh recency;
// inserts evict the least recently used entry once capacity is exceeded.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*entry[T]
	head     *entry[T] // warm end
	tail     *entry[T] // cold end
}

type entry[T any] struct {
	key        string
	data       T
	expiresAt  time.Time
	prev, next *entry[T]
}

// NewLRUCache creates a cache holding at most capacity entries, each living
// for ttl after its last Set.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*entry[T]),
	}
}

// Get retrieves a value from the cache. Expired entries are removed on access.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.index[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.remove(e)
		return zero, false
	}

	c.unlink(e)
	c.pushWarm(e)
	return e.data, true
}

// Set stores a value, resetting its TTL. Overflowing entries are evicted
// from the cold end.
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[key]; ok {
		e.data = data
		e.expiresAt = time.Now().Add(c.ttl)
		c.unlink(e)
		c.pushWarm(e)
		return
	}

	e := &entry[T]{key: key, data: data, expiresAt: time.Now().Add(c.ttl)}
	c.index[key] = e
	c.pushWarm(e)

	if len(c.index) > c.capacity && c.tail != nil {
		c.remove(c.tail)
	}
}

// Delete removes a key from the cache.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[key]; ok {
		c.remove(e)
	}
}

// CleanExpired removes every expired entry and reports how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for e := c.head; e != nil; {
		next := e.next
		if now.After(e.expiresAt) {
			c.remove(e)
			removed++
		}
		e = next
	}
	return removed
}

// Size returns the current number of entries, expired ones included.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// pushWarm links e in at the warm end. e must be unlinked.
func (c *LRUCache[T]) pushWarm(e *entry[T]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRUCache[T]) unlink(e *entry[T]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *LRUCache[T]) remove(e *entry[T]) {
	c.unlink(e)
	delete(c.index, e.key)
}
