package cache

import "time"

// Entry is a resolved value and its absolute expiry.
//
// Entries are never mutated once stored. A refresh stores a new *Entry
// under the same key, so a reader holding the old pointer never sees a
// half-updated expiry.
type Entry struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

func newEntry(key, value string, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}
}

// IsLive reports whether now is strictly before ExpiresAt.
func (e *Entry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
