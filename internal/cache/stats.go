package cache

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Recorder accumulates resolve statistics.
//
// All counters are atomic and only ever grow, so a Recorder can be shared by
// several caches and read without taking the cache lock.
type Recorder struct {
	hits         atomic.Int64
	misses       atomic.Int64
	failures     atomic.Int64
	evictions    atomic.Int64
	expirations  atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordHit counts a resolve served from the cache.
func (r *Recorder) RecordHit(latency time.Duration) {
	r.hits.Add(1)
	r.totalLatency.Add(int64(latency))
}

// RecordMiss counts a resolve that went upstream.
func (r *Recorder) RecordMiss(latency time.Duration) {
	r.misses.Add(1)
	r.totalLatency.Add(int64(latency))
}

// RecordFailure counts a miss whose upstream resolution failed.
func (r *Recorder) RecordFailure(latency time.Duration) {
	r.failures.Add(1)
	r.RecordMiss(latency)
}

// RecordEviction counts an entry dropped to respect capacity.
func (r *Recorder) RecordEviction() {
	r.evictions.Add(1)
}

// RecordExpirations counts entries reclaimed after their TTL.
func (r *Recorder) RecordExpirations(n int) {
	r.expirations.Add(int64(n))
}

// Report is a point-in-time view of a Recorder.
type Report struct {
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	Failures     int64         `json:"failures"`
	Evictions    int64         `json:"evictions"`
	Expirations  int64         `json:"expirations"`
	TotalLatency time.Duration `json:"total_latency"`
	// HitRate is hits/(hits+misses), 0 before the first request.
	HitRate float64 `json:"hit_rate"`
	// AvgLatency is TotalLatency/(hits+misses), 0 before the first request.
	AvgLatency   time.Duration `json:"avg_latency"`
	AvgLatencyMs float64       `json:"avg_latency_ms"`
}

// Report returns derived statistics. Counters are read one at a time, so
// under concurrent traffic the fields may be off by the requests in flight.
func (r *Recorder) Report() Report {
	rep := Report{
		Hits:         r.hits.Load(),
		Misses:       r.misses.Load(),
		Failures:     r.failures.Load(),
		Evictions:    r.evictions.Load(),
		Expirations:  r.expirations.Load(),
		TotalLatency: time.Duration(r.totalLatency.Load()),
	}
	total := rep.Hits + rep.Misses
	if total == 0 {
		return rep
	}
	rep.HitRate = float64(rep.Hits) / float64(total)
	rep.AvgLatency = rep.TotalLatency / time.Duration(total)
	rep.AvgLatencyMs = float64(rep.TotalLatency) / float64(time.Millisecond) / float64(total)
	return rep
}

// String formats the report on one line, e.g.
// "Hit Rate: 60.00%, Avg Lookup Time: 1.23 ms".
func (r Report) String() string {
	return fmt.Sprintf("Hit Rate: %.2f%%, Avg Lookup Time: %.2f ms", r.HitRate*100, r.AvgLatencyMs)
}
