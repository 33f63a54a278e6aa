package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	"github.com/kushalsai-01/resolvecache/internal/upstream"
)

var demoHosts = []string{"google.com", "google.com", "openai.com", "google.com"}

// demoCapacity is the size of the walkthrough cache.
const demoCapacity = 5

// runDemo walks through lookups, LRU eviction and background expiry.
func runDemo(ctx context.Context, w io.Writer, logger *slog.Logger, delay time.Duration) error {
	sim := upstream.NewSimulated(delay)

	cfg := cache.DefaultConfig()
	cfg.Capacity = demoCapacity
	c, err := cache.New(cfg, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	for _, host := range demoHosts {
		ip, outcome, err := c.Resolve(ctx, host, sim)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Resolved %s -> %s (%s)\n", host, ip, outcome)
	}
	fmt.Fprintln(w, c.Stats())
	fmt.Fprintf(w, "cache size: %d of %d\n", c.Size(), demoCapacity)

	// LRU eviction with capacity 2.
	lru, err := cache.New(cache.Config{
		Capacity:       2,
		TTL:            time.Minute,
		SweepInterval:  time.Hour,
		ResolveTimeout: time.Second,
	}, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer lru.Close()

	for _, key := range []string{"a", "b", "a", "c"} {
		if _, outcome, err := lru.Resolve(ctx, key, sim); err != nil {
			return err
		} else if key == "a" && outcome == cache.Hit {
			fmt.Fprintln(w, "resolve a: HIT (touches a -> MRU)")
		}
	}
	fmt.Fprintf(w, "keys after eviction (MRU->LRU): %v\n", lru.Keys())

	// Expiry without any further lookup: the sweeper removes the entry.
	const ttl = 200 * time.Millisecond
	short, err := cache.New(cache.Config{
		Capacity:       2,
		TTL:            ttl,
		SweepInterval:  ttl / 2,
		ResolveTimeout: time.Second,
	}, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer short.Close()

	if _, _, err := short.Resolve(ctx, "ttl", sim); err != nil {
		return err
	}
	fmt.Fprintf(w, "keys after ttl resolve: %v\n", short.Keys())

	wait := time.NewTimer(ttl + 3*ttl/2)
	defer wait.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-wait.C:
	}
	fmt.Fprintf(w, "keys after ttl + sweep: %v\n", short.Keys())
	fmt.Fprintf(w, "expirations: %d\n", short.Stats().Expirations)
	return nil
}
