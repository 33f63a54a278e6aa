package cache

import (
	"fmt"
	"time"

	"github.com/kushalsai-01/resolvecache/internal/errors"
)

// Config controls cache capacity, expiry and maintenance.
//
// Every field must be positive. Unlike a general purpose cache there is no
// "unbounded" or "never expires" mode: New rejects zero or negative values
// instead of clamping them.
type Config struct {
	// Capacity is the maximum number of entries held at once.
	Capacity int
	// TTL is how long a resolved value stays live.
	TTL time.Duration
	// SweepInterval is how often the sweeper reclaims expired entries.
	SweepInterval time.Duration
	// ResolveTimeout bounds each upstream resolution.
	ResolveTimeout time.Duration
}

// DefaultConfig returns the defaults of the DNS front end: five minute TTL,
// sweep every five seconds.
func DefaultConfig() Config {
	return Config{
		Capacity:       1000,
		TTL:            300 * time.Second,
		SweepInterval:  5 * time.Second,
		ResolveTimeout: 5 * time.Second,
	}
}

// Validate checks that every field is positive.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return invalidConfig(fmt.Sprintf("capacity must be positive, got %d", c.Capacity))
	case c.TTL <= 0:
		return invalidConfig(fmt.Sprintf("ttl must be positive, got %v", c.TTL))
	case c.SweepInterval <= 0:
		return invalidConfig(fmt.Sprintf("sweep interval must be positive, got %v", c.SweepInterval))
	case c.ResolveTimeout <= 0:
		return invalidConfig(fmt.Sprintf("resolve timeout must be positive, got %v", c.ResolveTimeout))
	}
	return nil
}

func invalidConfig(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "cache", "Validate", "config check")
}
