package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kushalsai-01/resolvecache/internal/metric"
)

// cacheMetrics mirrors the Recorder into Prometheus.
type cacheMetrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	failures    prometheus.Counter
	evictions   prometheus.Counter
	expirations prometheus.Counter
	size        prometheus.Gauge
	latency     prometheus.Histogram
}

func newCacheMetrics(reg *metric.MetricsRegistry, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	counter := func(metricName, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "resolvecache",
			Subsystem:   "cache",
			Name:        metricName,
			ConstLabels: labels,
			Help:        help,
		})
	}
	m := &cacheMetrics{
		hits:        counter("hits_total", "Total number of resolves served from cache"),
		misses:      counter("misses_total", "Total number of resolves that went upstream"),
		failures:    counter("failures_total", "Total number of failed upstream resolutions"),
		evictions:   counter("evictions_total", "Total number of LRU evictions"),
		expirations: counter("expirations_total", "Total number of entries removed after TTL"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "resolvecache",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "resolvecache",
			Subsystem:   "cache",
			Name:        "resolve_duration_seconds",
			ConstLabels: labels,
			Help:        "Duration of resolve calls, hits and misses",
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	for metricName, c := range map[string]prometheus.Counter{
		"cache_hits":        m.hits,
		"cache_misses":      m.misses,
		"cache_failures":    m.failures,
		"cache_evictions":   m.evictions,
		"cache_expirations": m.expirations,
	} {
		if err := reg.RegisterCounter(name, metricName, c); err != nil {
			return nil, err
		}
	}
	if err := reg.RegisterGauge(name, "cache_size", m.size); err != nil {
		return nil, err
	}
	if err := reg.RegisterHistogram(name, "cache_resolve_duration", m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// The methods below accept a nil receiver so call sites need no guard.

func (m *cacheMetrics) recordHit(d time.Duration) {
	if m == nil {
		return
	}
	m.hits.Inc()
	m.latency.Observe(d.Seconds())
}

func (m *cacheMetrics) recordMiss(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.misses.Inc()
	if failed {
		m.failures.Inc()
	}
	m.latency.Observe(d.Seconds())
}

func (m *cacheMetrics) recordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *cacheMetrics) recordExpirations(n int) {
	if m == nil {
		return
	}
	m.expirations.Add(float64(n))
}

func (m *cacheMetrics) updateSize(n int) {
	if m == nil {
		return
	}
	m.size.Set(float64(n))
}
