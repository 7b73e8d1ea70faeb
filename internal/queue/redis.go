package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StreamOptions configures a RedisStream.
type StreamOptions struct {
	Stream   string
	Group    string
	Consumer string
	// Block is how long Receive waits for a new message.
	Block time.Duration
	// ReclaimIdle is how long a pending message may sit unacked before another
	// consumer takes it over. Zero disables reclaiming.
	ReclaimIdle time.Duration
	// MaxLen caps the stream length approximately. Zero leaves it unbounded.
	MaxLen int64
}

// RedisStream is a Sender and Receiver over a Redis stream and consumer group.
type RedisStream struct {
	rdb  redis.Cmdable
	opts StreamOptions
	log  logrus.FieldLogger
}

// NewRedisStream creates the stream handle. Call EnsureGroup before Receive.
func NewRedisStream(rdb redis.Cmdable, opts StreamOptions, log logrus.FieldLogger) *RedisStream {
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	return &RedisStream{rdb: rdb, opts: opts, log: log}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (q *RedisStream) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", q.opts.Group, q.opts.Stream, err)
	}
	return nil
}

// Send implements Sender.
func (q *RedisStream) Send(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	args := &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{"event": event, "payload": string(body)},
	}
	if q.opts.MaxLen > 0 {
		args.MaxLen = q.opts.MaxLen
		args.Approx = true
	}
	id, err := q.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", event, err)
	}
	q.log.WithFields(logrus.Fields{"event": event, "message_id": id}).Debug("Work item enqueued")
	return nil
}

// Receive implements Receiver. Idle pending messages are reclaimed before new
// ones are read.
func (q *RedisStream) Receive(ctx context.Context) (Message, error) {
	if q.opts.ReclaimIdle > 0 {
		msgs, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.opts.Stream,
			Group:    q.opts.Group,
			Consumer: q.opts.Consumer,
			MinIdle:  q.opts.ReclaimIdle,
			Start:    "0-0",
			Count:    1,
		}).Result()
		switch {
		case err == nil && len(msgs) > 0:
			q.log.WithField("message_id", msgs[0].ID).Info("Reclaimed idle work item")
			return decode(msgs[0])
		case err != nil && !errors.Is(err, redis.Nil):
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			q.log.WithError(err).Debug("Reclaim pass failed")
		}
	}

	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    q.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, ErrNoMessage
	}
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, fmt.Errorf("read %s: %w", q.opts.Stream, err)
	}
	for _, s := range streams {
		if len(s.Messages) > 0 {
			return decode(s.Messages[0])
		}
	}
	return Message{}, ErrNoMessage
}

// Ack implements Receiver.
func (q *RedisStream) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, q.opts.Stream, q.opts.Group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

func decode(m redis.XMessage) (Message, error) {
	event, _ := m.Values["event"].(string)
	payload, _ := m.Values["payload"].(string)
	if event == "" {
		return Message{ID: m.ID}, fmt.Errorf("%w: message %s has no event", ErrMalformed, m.ID)
	}
	return Message{ID: m.ID, Event: event, Payload: json.RawMessage(payload)}, nil
}
