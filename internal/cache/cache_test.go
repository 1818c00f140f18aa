package cache

import (
	"fmt"
	"testing"
	"time"
)

var _ Cache[int] = (*LRUCache[int])(nil)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache returned a value")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", got, ok)
	}

	c.Set("a", "alpha2")
	got, _ = c.Get("a")
	if got != "alpha2" {
		t.Errorf("Get(a) after overwrite = %q, want alpha2", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d after overwrite, want 1", c.Size())
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 1; i <= 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k1 so k2 becomes the coldest entry.
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("k1 missing before eviction")
	}

	c.Set("k4", 4)

	if _, ok := c.Get("k2"); ok {
		t.Error("k2 survived eviction, want it dropped as least recently used")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s evicted, want it kept", key)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache[int](4, 20*time.Millisecond)

	c.Set("k", 42)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry missing before expiry")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("entry still readable after TTL")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after expired read, want 0", c.Size())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)

	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted entry still present")
	}

	// Deleting an absent key is a no-op.
	c.Delete("never-set")
}

func TestCleanExpired(t *testing.T) {
	c := NewLRUCache[int](8, 20*time.Millisecond)

	c.Set("old1", 1)
	c.Set("old2", 2)
	time.Sleep(40 * time.Millisecond)
	c.Set("fresh", 3)

	removed := c.CleanExpired()
	if removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d after sweep, want 1", c.Size())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry removed by sweep")
	}
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	c1 := NewLRUCache[int](8, 10*time.Millisecond)
	c2 := NewLRUCache[string](8, 10*time.Millisecond)
	c1.Set("a", 1)
	c2.Set("b", "two")

	m := NewManager()
	m.Register(c1)
	m.Register(c2)
	m.StartCleanup(15 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c1.Size() == 0 && c2.Size() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("caches not swept: sizes %d and %d", c1.Size(), c2.Size())
}

func TestManagerStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](4, time.Minute))
	m.StartCleanup(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
