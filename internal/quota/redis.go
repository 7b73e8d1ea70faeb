package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript trims, counts and conditionally appends in one server-side step.
// KEYS[1] ledger key
// ARGV now_ms, cutoff_ms, limit, member, ttl_ms
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. ARGV[2])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, ARGV[5])
local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore keeps each ledger key as a sorted set of event timestamps.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, bool, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()
	res, err := reserveScript.Run(ctx, s.rdb, []string{key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(cutoffMillis(now, window), 10),
		limit,
		member,
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Window{}, false, fmt.Errorf("reserve %s: %w", key, err)
	}
	if len(res) != 3 {
		return Window{}, false, fmt.Errorf("reserve %s: unexpected reply length %d", key, len(res))
	}
	return windowOf(int(res[1]), res[2]), res[0] == 1, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	min := strconv.FormatInt(cutoffMillis(now, window), 10)
	pipe := s.rdb.Pipeline()
	count := pipe.ZCount(ctx, key, min, "+inf")
	first := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: "+inf", Count: 1})
	if _, err := pipe.Exec(ctx); err != nil {
		return Window{}, fmt.Errorf("count %s: %w", key, err)
	}
	var oldest int64
	if zs := first.Val(); len(zs) > 0 {
		oldest = int64(zs[0].Score)
	}
	return windowOf(int(count.Val()), oldest), nil
}

func windowOf(count int, oldestMs int64) Window {
	if count == 0 {
		return Window{}
	}
	return Window{Count: count, Oldest: time.UnixMilli(oldestMs).UTC()}
}
