package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedis(rdb)
}

type stats struct {
	Offers int            `json:"offers"`
	ByRole map[string]int `json:"by_role"`
}

func TestSetGet(t *testing.T) {
	mr, c := newCache(t)
	ctx := context.Background()

	var got stats
	ok, err := c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "dash:admin", stats{Offers: 3, ByRole: map[string]int{"ADMIN": 1}}, time.Minute))
	assert.True(t, mr.Exists("lp:cache:dash:admin"))

	ok, err = c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Offers)
	assert.Equal(t, 1, got.ByRole["ADMIN"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	mr, c := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, mr.Exists("lp:cache:a"))
	require.NoError(t, c.Delete(ctx))
}

func TestGetErrorsWhenRedisDown(t *testing.T) {
	mr, c := newCache(t)
	mr.Close()
	_, err := c.Get(context.Background(), "x", new(int))
	assert.Error(t, err)
}

func TestGetCorruptValue(t *testing.T) {
	mr, c := newCache(t)
	require.NoError(t, mr.Set("lp:cache:x", "{not json"))
	_, err := c.Get(context.Background(), "x", new(stats))
	assert.Error(t, err)
}
