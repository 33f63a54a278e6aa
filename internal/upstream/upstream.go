package upstream

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	"github.com/kushalsai-01/resolvecache/internal/config"
	"github.com/kushalsai-01/resolvecache/internal/errors"
	"github.com/kushalsai-01/resolvecache/internal/retry"
)

// New builds the resolver described by cfg. The returned close function
// releases connections and is never nil.
func New(cfg config.UpstreamConfig, logger *slog.Logger) (cache.Resolver, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	var (
		r       cache.Resolver
		closeFn = noop
	)
	switch cfg.Kind {
	case config.UpstreamSimulated:
		r = NewSimulated(cfg.Delay)
	case config.UpstreamDNS:
		r = NewDNS(nil)
	case config.UpstreamRedis:
		if cfg.Redis.Addr == "" {
			return nil, noop, errors.WrapInvalid(errors.ErrMissingConfig, "upstream", "New", "redis address")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r = NewRedis(client, cfg.Redis.KeyPrefix)
		closeFn = client.Close
	default:
		return nil, noop, errors.WrapInvalid(errors.ErrInvalidConfig, "upstream", "New", "unknown kind "+cfg.Kind)
	}

	if cfg.Retry.Attempts > 1 {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = cfg.Retry.Attempts
		if cfg.Retry.InitialDelay > 0 {
			rc.InitialDelay = cfg.Retry.InitialDelay
		}
		if cfg.Retry.MaxDelay > 0 {
			rc.MaxDelay = cfg.Retry.MaxDelay
		}
		if rc.MaxDelay < rc.InitialDelay {
			rc.MaxDelay = rc.InitialDelay
		}
		r = NewRetrying(r, rc, logger)
	}

	logger.Info("upstream configured", "kind", cfg.Kind, "retry_attempts", cfg.Retry.Attempts)
	return r, closeFn, nil
}
