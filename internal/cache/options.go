package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/kushalsai-01/resolvecache/internal/metric"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	ctx         context.Context
	logger      *slog.Logger
	recorder    *Recorder
	policy      Policy
	now         func() time.Time
	metricsReg  *metric.MetricsRegistry
	metricsName string
}

// WithContext ties the sweeper to ctx in addition to Close.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder shares r with the cache instead of creating a private one.
func WithRecorder(r *Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPolicy replaces the default LRU policy. The policy must enforce the
// configured capacity.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithClock replaces time.Now for expiry decisions. Latency is always
// measured with the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics exports cache statistics to reg, labelled with name.
// It is ignored when reg is nil or name is empty.
func WithMetrics(reg *metric.MetricsRegistry, name string) Option {
	return func(o *options) {
		if reg != nil && name != "" {
			o.metricsReg = reg
			o.metricsName = name
		}
	}
}

func applyOptions(cfg Config, opts ...Option) *options {
	o := &options{
		ctx:    context.Background(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.recorder == nil {
		o.recorder = NewRecorder()
	}
	if o.policy == nil {
		o.policy = NewLRU(cfg.Capacity)
	}
	return o
}
