package sqlstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

func TestQuotaStoreReserve(t *testing.T) {
	ctx := context.Background()
	qs := newTestDB(t).Quota()
	t0 := time.UnixMilli(1_700_000_000_000).UTC()

	w, ok, err := qs.Reserve(ctx, "k", 2, time.Second, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, quota.Window{Count: 1, Oldest: t0}, w)

	_, ok, err = qs.Reserve(ctx, "k", 2, time.Second, t0.Add(100*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)

	w, ok, err = qs.Reserve(ctx, "k", 2, time.Second, t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, w.Count)
	assert.Equal(t, t0, w.Oldest)

	w, ok, err = qs.Reserve(ctx, "k", 2, time.Second, t0.Add(time.Second+time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(100*time.Millisecond), w.Oldest)
}

func TestQuotaStoreWithLedger(t *testing.T) {
	ctx := context.Background()
	ledger := quota.NewLedger(newTestDB(t).Quota(), map[quota.Class]quota.Limit{
		quota.ClassExport: {Limit: 3, Window: time.Hour},
	})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := ledger.Admit(ctx, "u", quota.ClassExport)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(3), admitted.Load())

	usage, err := ledger.Usage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 3, usage[quota.ClassExport].Used)
	assert.Equal(t, 0, usage[quota.ClassExport].Remaining)
}
