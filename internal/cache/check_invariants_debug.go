//go:build debug

// Gomega is a dependency of debug builds only.

package cache

import (
	"errors"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var invariants = NewGomega(invariantFailHandler)

func invariantFailHandler(message string, callerSkip ...int) {
	skip := 1
	if len(callerSkip) > 0 {
		skip += callerSkip[0]
	}
	panic(stackerr.WrapSkip(errors.New("cache invariants are broken: "+message), skip))
}

// checkInvariants requires the write lock be held.
func (c *Cache) checkInvariants() {
	g := invariants
	g.Expect(len(c.entries)).To(BeNumerically("<=", c.capacity), "capacity exceeded")
	g.Expect(c.policy.Len()).To(Equal(len(c.entries)), "policy and table disagree on size")
	for _, key := range c.policy.Keys() {
		e, ok := c.entries[key]
		g.Expect(ok).To(BeTrue(), "tracked key %q has no entry", key)
		g.Expect(e.Key).To(Equal(key), "entry stored under another key")
	}
}
