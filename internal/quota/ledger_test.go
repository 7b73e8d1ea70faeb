package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLedger(t *testing.T, limits map[Class]Limit) (*Ledger, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewLedger(NewRedisStore(rdb), limits).WithClock(clk.Now), clk
}

func TestLedgerAdmitUpToLimit(t *testing.T) {
	ctx := context.Background()
	ledger, clk := newTestLedger(t, map[Class]Limit{ClassQuiz: {Limit: 5, Window: 24 * time.Hour}})
	start := clk.Now()

	for i := 0; i < 5; i++ {
		d, err := ledger.Admit(ctx, "user-1", ClassQuiz)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be admitted", i+1)
		assert.Equal(t, 5-(i+1), d.Remaining)
		assert.Equal(t, 5, d.Limit)
		clk.Advance(time.Minute)
	}

	d, err := ledger.Admit(ctx, "user-1", ClassQuiz)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, d.ResetAt.After(clk.Now()))
	assert.Equal(t, start.Add(24*time.Hour+time.Millisecond), d.ResetAt)

	// A rejection consumes nothing.
	usage, err := ledger.Usage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, usage[ClassQuiz].Used)

	clk.now = d.ResetAt
	d, err = ledger.Admit(ctx, "user-1", ClassQuiz)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLedgerKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, map[Class]Limit{
		ClassExport: {Limit: 1, Window: time.Hour},
		ClassChat:   {Limit: 1, Window: time.Hour},
	})

	d, err := ledger.Admit(ctx, "a", ClassExport)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = ledger.Admit(ctx, "b", ClassExport)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other user has its own window")

	d, err = ledger.Admit(ctx, "a", ClassChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other class has its own window")

	d, err = ledger.Admit(ctx, "a", ClassExport)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLedgerConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, map[Class]Limit{ClassIdentify: {Limit: 10, Window: 24 * time.Hour}})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := ledger.Admit(ctx, "racer", ClassIdentify)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), admitted.Load())
}

func TestLedgerUsageDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	ledger, clk := newTestLedger(t, nil)

	_, err := ledger.Admit(ctx, "u", ClassTTS)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		usage, err := ledger.Usage(ctx, "u")
		require.NoError(t, err)
		require.Len(t, usage, len(DefaultLimits()))
		assert.Equal(t, Usage{Limit: 20, Used: 1, Remaining: 19, ResetAt: clk.Now().Add(time.Minute + time.Millisecond)}, usage[ClassTTS])
		assert.Equal(t, 0, usage[ClassChat].Used)
		assert.Equal(t, clk.Now().Add(24*time.Hour), usage[ClassChat].ResetAt)
	}

	clk.Advance(2 * time.Minute)
	usage, err := ledger.Usage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, usage[ClassTTS].Used, "events outside the window are not counted")
}

func TestLedgerUnknownClass(t *testing.T) {
	ledger, _ := newTestLedger(t, map[Class]Limit{ClassChat: {Limit: 1, Window: time.Hour}})
	_, err := ledger.Admit(context.Background(), "u", Class("nope"))
	assert.ErrorIs(t, err, ErrUnknownClass)
}

type brokenStore struct{}

func (brokenStore) Reserve(context.Context, string, int, time.Duration, time.Time) (Window, bool, error) {
	return Window{}, false, errors.New("connection refused")
}

func (brokenStore) Count(context.Context, string, time.Duration, time.Time) (Window, error) {
	return Window{}, errors.New("connection refused")
}

func TestLedgerStoreFailure(t *testing.T) {
	ledger := NewLedger(brokenStore{}, nil)

	_, err := ledger.Admit(context.Background(), "u", ClassChat)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = ledger.Usage(context.Background(), "u")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ratelimit:user:export:42", Key("42", ClassExport))
}
