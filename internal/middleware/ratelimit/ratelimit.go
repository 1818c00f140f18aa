// Package ratelimit provides per-client request throttling for the HTTP
// server.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Clients idle longer than this are forgotten by the background sweep.
const idleCutoff = 10 * time.Minute

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.Burst <= 0 {
		c.Burst = c.RequestsPerMinute/3 + 1
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// Limiter keeps a token bucket per client IP. Buckets refill at the
// configured per-minute rate and idle clients are dropped by a background
// sweep.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit      rate.Limit
	burst      int
	sweepEvery time.Duration

	denied atomic.Int64
	quit   chan struct{}
	once   sync.Once
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter creates a rate limiter and starts its sweep goroutine. Call
// Stop when done with it.
func NewLimiter(config Config) *Limiter {
	config = config.withDefaults()
	rl := &Limiter{
		buckets:    make(map[string]*bucket),
		limit:      rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:      config.Burst,
		sweepEvery: config.CleanupInterval,
		quit:       make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *Limiter) bucketFor(ip string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[ip]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = time.Now()
	return b
}

// Allow reports whether a request from the given IP fits its bucket.
func (rl *Limiter) Allow(clientIP string) bool {
	if rl.bucketFor(clientIP).lim.Allow() {
		return true
	}
	rl.denied.Add(1)
	return false
}

func (rl *Limiter) sweep() {
	ticker := time.NewTicker(rl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-rl.quit:
			return
		case <-ticker.C:
			rl.dropIdle(time.Now().Add(-idleCutoff))
		}
	}
}

// dropIdle forgets every client not seen since the cutoff.
func (rl *Limiter) dropIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// ActiveClients returns the number of currently tracked clients.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.once.Do(func() { close(rl.quit) })
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns how many requests were denied and how many clients are
// tracked right now.
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.denied.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// IPExtractor resolves the client key a request is billed against.
type IPExtractor func(*http.Request) string

func defaultOnLimit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Middleware wraps a handler with the limiter. extractIP maps a request to
// its client key; onLimit, when non-nil, replaces the stock 429 response.
func (rl *Limiter) Middleware(extractIP IPExtractor, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = defaultOnLimit
	}
	wrap := func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
	return wrap
}
