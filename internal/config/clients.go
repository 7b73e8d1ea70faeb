package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/blob"
	"github.com/abhisek-1221/korai-sub001/internal/clipapi"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/store/sqlstore"
)

// OpenStore opens and migrates the relational store.
func OpenStore(ctx context.Context, c *Config, log logrus.FieldLogger) (*sqlstore.DB, error) {
	return sqlstore.Open(ctx, c.Database.Driver, c.Database.URL, log)
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, c *Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return rdb, nil
}

// NewQuotaLedger builds the quota ledger on the configured backend.
func NewQuotaLedger(c *Config, rdb redis.Cmdable, db *sqlstore.DB) (*quota.Ledger, error) {
	limits, err := c.Limits()
	if err != nil {
		return nil, err
	}
	var s quota.Store
	switch c.Quota.Backend {
	case QuotaRedis:
		if rdb == nil {
			return nil, fmt.Errorf("quota backend redis needs a redis client")
		}
		s = quota.NewRedisStore(rdb)
	case QuotaSQL:
		s = db.Quota()
	default:
		return nil, fmt.Errorf("unknown quota backend %q", c.Quota.Backend)
	}
	return quota.NewLedger(s, limits), nil
}

// StreamOptions maps the queue settings onto the job stream.
func (c *Config) StreamOptions() queue.StreamOptions {
	return queue.StreamOptions{
		Stream:      c.Queue.Stream,
		Group:       c.Queue.Group,
		Consumer:    c.Queue.Consumer,
		Block:       c.Queue.Block,
		ReclaimIdle: c.Queue.ReclaimIdle,
		MaxLen:      c.Queue.MaxLen,
	}
}

// NewBlobStore creates the configured artifact store. The returned close
// function releases its client.
func NewBlobStore(ctx context.Context, c *Config) (blob.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.Blob.Provider {
	case BlobSupabase:
		client, err := NewSupabase(c.Supabase)
		if err != nil {
			return nil, nil, err
		}
		return blob.NewSupabaseStore(client.Storage, c.Blob.Bucket, c.Supabase.URL), noop, nil
	case BlobGCS:
		s, err := blob.NewGCSStore(ctx, c.Blob.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case BlobMemory:
		return blob.NewMemoryStore(c.Blob.BaseURL), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown blob provider %q", c.Blob.Provider)
}

// NewClipAPI creates the client of the worker-side HTTP services.
func NewClipAPI(c *Config, log logrus.FieldLogger) *clipapi.Client {
	return clipapi.New(clipapi.Config{
		IdentifyURL:       c.ClipAPI.IdentifyURL,
		ProcessURL:        c.ClipAPI.ProcessURL,
		TranscribeURL:     c.ClipAPI.TranscribeURL,
		Token:             c.ClipAPI.Token,
		Timeout:           c.ClipAPI.Timeout,
		RequestsPerSecond: c.ClipAPI.RequestsPerSecond,
		Burst:             c.ClipAPI.Burst,
	}, log)
}
