// Package cache implements a single-process, in-memory resolve cache.
//
// Goals for this package:
//   - Keep the core data structures explicit (map of immutable entries + LRU list)
//   - Enforce a hard capacity with least-recently-used eviction
//   - Expire entries after a TTL, lazily on access and eagerly by a sweeper
//   - Collapse concurrent misses for one key into a single upstream call
//   - Own and cleanly stop the sweeper goroutine (no leaks on shutdown)
package cache
