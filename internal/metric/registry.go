// Package metric owns the Prometheus registry the cache and server export to.
package metric

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kushalsai-01/resolvecache/internal/errors"
)

// MetricsRegistry tracks collectors by "<owner>.<name>" so that one owner can
// not register the same metric twice and can unregister what it owns.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a registry preloaded with Go runtime and
// process collectors.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsRegistry{
		prometheusRegistry: reg,
		registered:         make(map[string]prometheus.Collector),
	}
}

// PrometheusRegistry returns the underlying registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}

// RegisterCounter registers a counter owned by owner.
func (r *MetricsRegistry) RegisterCounter(owner, name string, c prometheus.Counter) error {
	return r.register(owner, name, "RegisterCounter", c)
}

// RegisterGauge registers a gauge owned by owner.
func (r *MetricsRegistry) RegisterGauge(owner, name string, g prometheus.Gauge) error {
	return r.register(owner, name, "RegisterGauge", g)
}

// RegisterHistogram registers a histogram owned by owner.
func (r *MetricsRegistry) RegisterHistogram(owner, name string, h prometheus.Histogram) error {
	return r.register(owner, name, "RegisterHistogram", h)
}

// Unregister removes a metric registered by owner. It reports whether the
// metric was found.
func (r *MetricsRegistry) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := owner + "." + name
	c, ok := r.registered[key]
	if !ok {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(c)
}

func (r *MetricsRegistry) register(owner, name, op string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := owner + "." + name
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", name, owner),
			"MetricsRegistry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", op,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "MetricsRegistry", op, "prometheus registration")
	}

	r.registered[key] = c
	return nil
}
