package upstream

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultDelay is the latency of a simulated lookup.
const DefaultDelay = 100 * time.Millisecond

// Simulated answers every key with a fake address after a fixed delay.
type Simulated struct {
	Delay time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// SimulatedOption configures a Simulated resolver.
type SimulatedOption func(*Simulated)

// WithRand replaces the random source so answers are reproducible.
func WithRand(r *rand.Rand) SimulatedOption {
	return func(s *Simulated) { s.rnd = r }
}

func NewSimulated(delay time.Duration, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		Delay: delay,
		rnd:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns "172.217.14.<n>" with n in [0, 255).
func (s *Simulated) Resolve(ctx context.Context, key string) (string, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	s.mu.Lock()
	n := s.rnd.IntN(255)
	s.mu.Unlock()
	return fmt.Sprintf("172.217.14.%d", n), nil
}
