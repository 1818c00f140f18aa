// Package cache provides the in-process read-model caches and their
// cleanup lifecycle.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is the generic lookup contract the read models depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries in bulk.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry sweeps over every registered cache.
type Manager struct {
	caches []Cleaner
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{quit: make(chan struct{})}
}

// Register adds a cache to the sweep set. Not safe to call after
// StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins sweeping registered caches at the given interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.quit:
				return
			case <-ticker.C:
				m.sweepOnce()
			}
		}
	}()
}

func (m *Manager) sweepOnce() {
	dropped := 0
	for _, c := range m.caches {
		dropped += c.CleanExpired()
	}
	if dropped > 0 {
		slog.Debug("Cache sweep removed expired entries", "count", dropped)
	}
}

// Stop halts the sweep goroutine and waits for it to exit. Safe to call
// even when StartCleanup never ran.
func (m *Manager) Stop() {
	close(m.quit)
	m.wg.Wait()
}
