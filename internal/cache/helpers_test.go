package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for expiry decisions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// countingResolver answers "value-for-<key>" and counts calls per key.
type countingResolver struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newCountingResolver() *countingResolver {
	return &countingResolver{calls: make(map[string]int)}
}

func (r *countingResolver) Resolve(_ context.Context, key string) (string, error) {
	r.total.Add(1)
	r.mu.Lock()
	r.calls[key]++
	r.mu.Unlock()
	return "value-for-" + key, nil
}

func (r *countingResolver) Calls(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCache builds a cache with a long sweep interval, so tests decide
// when sweeping happens, and a discarded log.
func newTestCache(t *testing.T, capacity int, ttl time.Duration, opts ...Option) *Cache {
	t.Helper()
	cfg := Config{
		Capacity:       capacity,
		TTL:            ttl,
		SweepInterval:  time.Hour,
		ResolveTimeout: time.Second,
	}
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func mustResolve(t *testing.T, c *Cache, key string, r Resolver) (string, Outcome) {
	t.Helper()
	v, outcome, err := c.Resolve(context.Background(), key, r)
	if err != nil {
		t.Fatalf("resolve %s: %v", key, err)
	}
	return v, outcome
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
