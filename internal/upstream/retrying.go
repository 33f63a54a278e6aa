package upstream

import (
	"context"
	"log/slog"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	"github.com/kushalsai-01/resolvecache/internal/errors"
	"github.com/kushalsai-01/resolvecache/internal/retry"
)

// Retrying retries transient failures of the wrapped resolver. Not found
// answers, malformed values, invalid or fatal classified errors and caller
// cancellation are returned at once.
type Retrying struct {
	next cache.Resolver
	cfg  retry.Config
	log  *slog.Logger
}

func NewRetrying(next cache.Resolver, cfg retry.Config, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, cfg: cfg, log: logger}
}

func (r *Retrying) Resolve(ctx context.Context, key string) (string, error) {
	attempt := 0
	v, err := retry.DoWithResult(ctx, r.cfg, func(ctx context.Context) (string, error) {
		attempt++
		v, err := r.next.Resolve(ctx, key)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidValue) || ctx.Err() != nil ||
			errors.Classify(err) != errors.ErrorTransient {
			return "", retry.Stop(err)
		}
		r.log.Debug("upstream attempt failed", "key", key, "attempt", attempt, "error", err)
		return "", err
	})
	return v, err
}
