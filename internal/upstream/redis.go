package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kushalsai-01/resolvecache/internal/errors"
)

// Redis reads answers from string keys "<prefix><key>".
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Resolve(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	// Values are served as single protocol lines.
	if strings.ContainsAny(v, "\r\n") {
		return "", fmt.Errorf("%w: %s", errors.ErrInvalidValue, key)
	}
	return v, nil
}
