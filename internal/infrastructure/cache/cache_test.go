package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls atomic.Int64
}

func (c *countingInvalidator) InvalidateAll(context.Context) {
	c.calls.Add(1)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBusDeliversToOtherInstances(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	local := &countingInvalidator{}
	remote := &countingInvalidator{}
	a := NewRedisBus(client, "rbac:test", local)
	b := NewRedisBus(client, "rbac:test", remote)

	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))
	t.Cleanup(a.Stop)
	t.Cleanup(b.Stop)

	require.NoError(t, a.Publish(ctx))

	assert.Eventually(t, func() bool { return remote.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return local.calls.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRedisBusStopIsIdempotent(t *testing.T) {
	_, client := newRedis(t)
	bus := NewRedisBus(client, "rbac:test", &countingInvalidator{})

	require.NoError(t, bus.Start(context.Background()))
	bus.Stop()
	bus.Stop()
}

func TestRedisRevocations(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	store := NewRedisRevocations(client)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	require.NoError(t, store.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCatalogListenerHandle(t *testing.T) {
	inv := &countingInvalidator{}
	l := NewCatalogListener(nil, inv)
	l.ctx = context.Background()

	l.handle("other_channel", "")
	assert.Equal(t, int64(0), inv.calls.Load())

	l.handle(CatalogChannel, "42")
	assert.Equal(t, int64(1), inv.calls.Load())
}
