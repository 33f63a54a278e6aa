package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	rcerrors "github.com/kushalsai-01/resolvecache/internal/errors"
)

func TestRedis_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("dns:google.com").SetVal("142.250.80.46")

	r := NewRedis(db, "dns:")
	v, err := r.Resolve(context.Background(), "google.com")
	require.NoError(t, err)
	assert.Equal(t, "142.250.80.46", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_MissingKeyIsNotFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("dns:nowhere.example").RedisNil()

	r := NewRedis(db, "dns:")
	_, err := r.Resolve(context.Background(), "nowhere.example")
	assert.ErrorIs(t, err, rcerrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ErrorPassesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	boom := errors.New("connection reset")
	mock.ExpectGet("openai.com").SetErr(boom)

	r := NewRedis(db, "")
	_, err := r.Resolve(context.Background(), "openai.com")
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, rcerrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_MultiLineValueRejected(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("dns:k").SetVal("1.2.3.4\r\nEND")

	r := NewRedis(db, "dns:")
	_, err := r.Resolve(context.Background(), "k")
	assert.ErrorIs(t, err, rcerrors.ErrInvalidValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_MultiLineValueNeverCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("dns:k").SetVal("1.2.3.4\nEND")

	c, err := cache.New(cache.Config{Capacity: 2, TTL: time.Minute, SweepInterval: time.Hour, ResolveTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	r := NewRetrying(NewRedis(db, "dns:"), fastRetry(3), nil)
	_, _, err = c.Resolve(context.Background(), "k", r)
	assert.ErrorIs(t, err, rcerrors.ErrInvalidValue)
	assert.False(t, rcerrors.IsTransient(err))
	assert.Equal(t, 0, c.Size())
	assert.NoError(t, mock.ExpectationsWereMet(), "a malformed value is not retried")
}
