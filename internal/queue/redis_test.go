package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	VideoID string `json:"video_id"`
}

func newStream(t *testing.T, consumer string) (*RedisStream, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	q := NewRedisStream(rdb, StreamOptions{
		Stream:   "korai:jobs",
		Group:    "processors",
		Consumer: consumer,
		Block:    50 * time.Millisecond,
	}, log)
	require.NoError(t, q.EnsureGroup(context.Background()))
	return q, rdb
}

func TestRedisStreamSendReceiveAck(t *testing.T) {
	ctx := context.Background()
	q, rdb := newStream(t, "c1")

	require.NoError(t, q.EnsureGroup(ctx), "group creation is idempotent")
	require.NoError(t, q.Send(ctx, "video/identify.clips", item{VideoID: "v1"}))

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "video/identify.clips", msg.Event)

	var got item
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, "v1", got.VideoID)

	pending := func() int {
		p, err := rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: "korai:jobs", Group: "processors", Start: "-", End: "+", Count: 10,
		}).Result()
		require.NoError(t, err)
		return len(p)
	}
	assert.Equal(t, 1, pending())

	require.NoError(t, q.Ack(ctx, msg.ID))
	assert.Equal(t, 0, pending())
}

func TestRedisStreamReceiveEmpty(t *testing.T) {
	q, _ := newStream(t, "c1")
	_, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestRedisStreamDeliversEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	q, _ := newStream(t, "c1")

	require.NoError(t, q.Send(ctx, "clips/process", item{VideoID: "a"}))
	require.NoError(t, q.Send(ctx, "clips/process", item{VideoID: "b"}))

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	second, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}
