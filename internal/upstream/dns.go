package upstream

import (
	"context"
	"fmt"
	"net"

	"github.com/kushalsai-01/resolvecache/internal/errors"
)

// HostLookuper is the part of *net.Resolver that DNS uses.
type HostLookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNS resolves keys as host names through the system resolver and returns
// the first address.
type DNS struct {
	lookup HostLookuper
}

// NewDNS uses net.DefaultResolver when l is nil.
func NewDNS(l HostLookuper) *DNS {
	if l == nil {
		l = net.DefaultResolver
	}
	return &DNS{lookup: l}
}

func (d *DNS) Resolve(ctx context.Context, key string) (string, error) {
	addrs, err := d.lookup.LookupHost(ctx, key)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", fmt.Errorf("%w: %s", errors.ErrNotFound, key)
		}
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	return addrs[0], nil
}
