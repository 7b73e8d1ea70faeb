package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreReserveTrimsOldEvents(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb)

	t0 := time.UnixMilli(1_700_000_000_000).UTC()
	w, ok, err := store.Reserve(ctx, "k", 2, time.Second, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Window{Count: 1, Oldest: t0}, w)

	_, ok, err = store.Reserve(ctx, "k", 2, time.Second, t0.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)

	w, ok, err = store.Reserve(ctx, "k", 2, time.Second, t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "event at exactly now-window still counts")
	assert.Equal(t, 2, w.Count)

	w, ok, err = store.Reserve(ctx, "k", 2, time.Second, t0.Add(time.Second+time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, w.Count)
	assert.Equal(t, t0.Add(500*time.Millisecond), w.Oldest)

	members, err := rdb.ZCard(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), members)

	ttl := mr.TTL("k")
	assert.Equal(t, time.Second, ttl)
}

func TestRedisStoreCountIsReadOnly(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb)

	t0 := time.UnixMilli(1_700_000_000_000).UTC()
	w, err := store.Count(ctx, "empty", time.Minute, t0)
	require.NoError(t, err)
	assert.Equal(t, Window{}, w)

	_, _, err = store.Reserve(ctx, "k", 5, time.Minute, t0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		w, err = store.Count(ctx, "k", time.Minute, t0.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, Window{Count: 1, Oldest: t0}, w)
	}

	w, err = store.Count(ctx, "k", time.Minute, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, w.Count)
}
