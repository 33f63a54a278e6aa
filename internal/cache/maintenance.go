package cache

import (
	"time"

	"github.com/kushalsai-01/resolvecache/internal/tag"
)

// sweepLoop periodically scans and removes expired entries.
//
// A full scan per tick keeps the sweeper easy to reason about and avoids
// per-entry timers. Lazy expiry in Resolve stays authoritative; the sweeper
// only reclaims memory for keys nobody asked for since they expired.
func (c *Cache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep runs one cycle and returns the number of entries removed. A panic
// inside the cycle is logged and the loop goes on at the next tick.
func (c *Cache) sweep() (removed int) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error("sweep cycle failed", "panic", p)
			if tag.Debug {
				panic(p)
			}
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	// Close may have raced with the ticker; nothing mutates after it.
	if c.isClosedLocked() {
		return 0
	}

	now := c.now()
	for key, e := range c.entries {
		if e.IsLive(now) {
			continue
		}
		c.deleteLocked(key)
		removed++
	}

	if removed > 0 {
		c.stats.RecordExpirations(removed)
		c.metrics.recordExpirations(removed)
		c.log.Debug("swept expired entries", "removed", removed, "size", len(c.entries))
	}
	return removed
}
