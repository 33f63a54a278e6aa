package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kushalsai-01/resolvecache/internal/errors"
	"github.com/kushalsai-01/resolvecache/internal/tag"
)

// MaxKeySize is the longest key Resolve accepts.
const MaxKeySize = 250

// Outcome tells whether a resolve was served from the cache.
type Outcome int

const (
	Miss Outcome = iota
	Hit
)

func (o Outcome) String() string {
	if o == Hit {
		return "HIT"
	}
	return "MISS"
}

// Resolver looks a key up upstream.
//
// Implementations must honour ctx: the cache bounds every call with its
// resolve timeout and cancels outstanding calls on Close.
type Resolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, key string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// Cache is a concurrency-safe resolve cache with TTL expiry and LRU eviction.
//
// The entry map and the recency policy are guarded by one lock and always
// change together. Upstream resolution happens outside the lock, one call
// per key at a time, so a slow upstream never stalls other keys.
//
// Ownership model:
// Cache owns its sweeper goroutine. Call Close to stop it.
type Cache struct {
	mu sync.RWMutex

	entries map[string]*Entry
	policy  Policy

	capacity       int
	ttl            time.Duration
	resolveTimeout time.Duration
	sweepEvery     time.Duration

	flights singleflight.Group
	stats   *Recorder
	metrics *cacheMetrics
	log     *slog.Logger
	now     func() time.Time

	// Goroutine ownership.
	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool
	wg         sync.WaitGroup
	closed     bool
}

// New validates cfg, constructs a cache and starts its sweeper.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(cfg, opts...)

	var m *cacheMetrics
	if o.metricsReg != nil {
		var err error
		m, err = newCacheMetrics(o.metricsReg, o.metricsName)
		if err != nil {
			return nil, errors.Wrap(err, "cache", "New", "metrics registration")
		}
	}

	ctx, cancel := context.WithCancel(o.ctx)
	c := &Cache{
		entries:        make(map[string]*Entry, cfg.Capacity),
		policy:         o.policy,
		capacity:       cfg.Capacity,
		ttl:            cfg.TTL,
		resolveTimeout: cfg.ResolveTimeout,
		sweepEvery:     cfg.SweepInterval,
		stats:          o.recorder,
		metrics:        m,
		log:            o.logger,
		now:            o.now,
		ctx:            ctx,
		cancel:         cancel,
	}

	c.wg.Add(1)
	go c.sweepLoop()
	// A cancelled parent context closes the cache like Close does.
	c.mu.Lock()
	c.stopParent = context.AfterFunc(o.ctx, func() { c.Close() })
	c.mu.Unlock()

	return c, nil
}

// Close stops the sweeper and rejects further operations.
// In-flight upstream calls are cancelled.
//
// Close is safe to call multiple times.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, stopParent := c.cancel, c.stopParent
	c.mu.Unlock()

	if stopParent != nil {
		stopParent()
	}
	// Cancel outside the lock so a sweep in progress can finish.
	cancel()
	c.wg.Wait()
	return nil
}

// Resolve returns the value for key, from the cache when a live entry
// exists, otherwise from r.
//
// Concurrent misses for the same key share one call to r. A failed
// resolution stores nothing: the key stays absent, or keeps its previous
// expired entry, and the error wraps errors.ErrResolveFailed.
func (c *Cache) Resolve(ctx context.Context, key string, r Resolver) (string, Outcome, error) {
	start := time.Now()

	if err := validateKey(key); err != nil {
		return "", Miss, err
	}
	if r == nil {
		return "", Miss, errors.WrapInvalid(errors.ErrMissingConfig, "cache", "Resolve", "nil resolver")
	}

	value, ok, err := c.lookup(key)
	if err != nil {
		return "", Miss, err
	}
	if ok {
		c.recordHit(time.Since(start))
		return value, Hit, nil
	}

	res, err := c.fill(ctx, key, r)
	if err != nil {
		d := time.Since(start)
		c.stats.RecordFailure(d)
		c.metrics.recordMiss(d, true)
		return "", Miss, err
	}
	if res.hit {
		c.recordHit(time.Since(start))
		return res.value, Hit, nil
	}
	d := time.Since(start)
	c.stats.RecordMiss(d)
	c.metrics.recordMiss(d, false)
	return res.value, Miss, nil
}

// Remove deletes key. Removing an absent key is not an error.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	if c.isClosedLocked() {
		return closedErr("Remove")
	}
	if c.deleteLocked(key) {
		c.log.Debug("removed entry", "key", key)
	}
	return nil
}

// Size returns the number of stored entries.
//
// Note: Size includes entries that have expired but haven't been swept yet.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns keys in MRU -> LRU order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy.Keys()
}

// Stats returns a snapshot of the cache statistics. It never takes the
// cache lock.
func (c *Cache) Stats() Report {
	return c.stats.Report()
}

// Recorder returns the statistics recorder, which may be shared.
func (c *Cache) Recorder() *Recorder {
	return c.stats
}

// lookup returns the live value for key and marks it most recently used.
func (c *Cache) lookup(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosedLocked() {
		return "", false, closedErr("Resolve")
	}
	e, ok := c.entries[key]
	if !ok || !e.IsLive(c.now()) {
		return "", false, nil
	}
	if !c.policy.Touch(key) {
		c.violated("touch of untracked key %q", key)
		c.admitLocked(key)
	}
	return e.Value, true, nil
}

type flightResult struct {
	value string
	hit   bool
}

// fill resolves key upstream, collapsing concurrent callers into one flight.
// A caller whose ctx ends stops waiting; the flight itself carries on for
// the other waiters.
func (c *Cache) fill(ctx context.Context, key string, r Resolver) (flightResult, error) {
	ch := c.flights.DoChan(key, func() (interface{}, error) {
		// A flight that finished just before this one may have stored key.
		if value, ok, err := c.lookup(key); err != nil {
			return nil, err
		} else if ok {
			return flightResult{value: value, hit: true}, nil
		}

		value, err := c.resolveUpstream(ctx, key, r)
		if err != nil {
			return nil, err
		}
		if err := c.store(key, value); err != nil {
			return nil, err
		}
		return flightResult{value: value}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return flightResult{}, res.Err
		}
		return res.Val.(flightResult), nil
	case <-ctx.Done():
		return flightResult{}, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrResolveFailed, ctx.Err()),
			"cache", "Resolve", "wait for upstream")
	}
}

// resolveUpstream calls r under the resolve timeout. The call is detached
// from the caller's cancellation, since other callers may share it, and is
// cancelled when the cache closes.
func (c *Cache) resolveUpstream(ctx context.Context, key string, r Resolver) (string, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.resolveTimeout)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	value, err := callResolver(rctx, r, key)
	if err == nil {
		return value, nil
	}
	if c.ctx.Err() != nil {
		return "", closedErr("Resolve")
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %v: %w", errors.ErrUpstreamTimeout, c.resolveTimeout, err)
	}
	c.log.Warn("upstream resolution failed", "key", key, "error", err)

	err = fmt.Errorf("%w: %w", errors.ErrResolveFailed, err)
	if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidValue) {
		return "", errors.Wrap(err, "cache", "Resolve", "upstream lookup")
	}
	return "", errors.WrapTransient(err, "cache", "Resolve", "upstream lookup")
}

func callResolver(ctx context.Context, r Resolver, key string) (value string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("resolver panic: %v", p)
		}
	}()
	return r.Resolve(ctx, key)
}

// store inserts or refreshes key. A new key is admitted to the policy and
// the evicted victim, if any, is deleted before the lock is released.
func (c *Cache) store(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	if c.isClosedLocked() {
		return closedErr("Resolve")
	}

	e := newEntry(key, value, c.now(), c.ttl)
	if _, ok := c.entries[key]; ok {
		c.entries[key] = e
		if !c.policy.Touch(key) {
			c.violated("refresh of untracked key %q", key)
			c.admitLocked(key)
		}
		return nil
	}

	c.entries[key] = e
	c.admitLocked(key)
	c.metrics.updateSize(len(c.entries))
	return nil
}

func (c *Cache) admitLocked(key string) {
	victim, evicted := c.policy.Admit(key)
	if !evicted {
		return
	}
	if _, ok := c.entries[victim]; !ok {
		c.violated("evicted key %q has no entry", victim)
		return
	}
	delete(c.entries, victim)
	c.stats.RecordEviction()
	c.metrics.recordEviction()
	c.log.Debug("evicted least recently used entry", "key", victim)
}

func (c *Cache) deleteLocked(key string) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	if !c.policy.Remove(key) {
		c.violated("removal of untracked key %q", key)
	}
	c.metrics.updateSize(len(c.entries))
	return true
}

func (c *Cache) recordHit(d time.Duration) {
	c.stats.RecordHit(d)
	c.metrics.recordHit(d)
}

// violated reports a broken internal invariant. Debug builds panic;
// release builds log and carry on.
func (c *Cache) violated(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.log.Error("cache invariant violated", "detail", msg)
	if tag.Debug {
		panic("cache: invariant violated: " + msg)
	}
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "Resolve", "empty key")
	}
	if len(key) > MaxKeySize {
		return errors.WrapInvalid(errors.ErrInvalidKey, "cache", "Resolve",
			fmt.Sprintf("key longer than %d bytes", MaxKeySize))
	}
	return nil
}

// isClosedLocked reports whether Close ran or the parent context ended.
// The parent's cancellation reaches c.ctx synchronously, so callers see
// the closed state before the Close triggered by it has finished.
func (c *Cache) isClosedLocked() bool {
	return c.closed || c.ctx.Err() != nil
}

func closedErr(op string) error {
	return errors.Wrap(errors.ErrClosed, "cache", op, "closed check")
}
