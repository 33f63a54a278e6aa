package upstream

import (
	"context"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simulatedAddr = regexp.MustCompile(`^172\.217\.14\.(\d{1,3})$`)

func TestSimulated_AddressShape(t *testing.T) {
	s := NewSimulated(0, WithRand(rand.New(rand.NewPCG(1, 2))))
	for i := 0; i < 100; i++ {
		v, err := s.Resolve(context.Background(), "google.com")
		require.NoError(t, err)
		assert.Regexp(t, simulatedAddr, v)
	}
}

func TestSimulated_SeededIsReproducible(t *testing.T) {
	a := NewSimulated(0, WithRand(rand.New(rand.NewPCG(7, 7))))
	b := NewSimulated(0, WithRand(rand.New(rand.NewPCG(7, 7))))
	for i := 0; i < 10; i++ {
		va, _ := a.Resolve(context.Background(), "k")
		vb, _ := b.Resolve(context.Background(), "k")
		assert.Equal(t, va, vb)
	}
}

func TestSimulated_Delay(t *testing.T) {
	s := NewSimulated(20 * time.Millisecond)
	start := time.Now()
	_, err := s.Resolve(context.Background(), "openai.com")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSimulated_ContextCancelled(t *testing.T) {
	s := NewSimulated(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Resolve(ctx, "slow.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
