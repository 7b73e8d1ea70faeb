package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	id string
	fn func(ctx context.Context) error
}

func (j *funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }
func (j *funcJob) ID() string                        { return j.id }
func (j *funcJob) Type() string                      { return "TEST" }
func (j *funcJob) Payload() interface{}              { return map[string]string{"id": j.id} }

type memRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *memRecorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *memRecorder) Pending(_ context.Context, job Job) (string, error) {
	r.add("pending " + job.ID())
	return "rec-" + job.ID(), nil
}

func (r *memRecorder) Processing(_ context.Context, id string) error {
	r.add("processing " + id)
	return nil
}

func (r *memRecorder) Finished(_ context.Context, id string, jobErr error) error {
	if jobErr != nil {
		r.add("failed " + id)
		return nil
	}
	r.add("completed " + id)
	return nil
}

func (r *memRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestDispatcher(t *testing.T, workers int, rec Recorder) *Dispatcher {
	t.Helper()
	log, _ := test.NewNullLogger()
	d := NewDispatcher(workers, rec, log)
	d.Run(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcherRunsAllJobs(t *testing.T) {
	d := newTestDispatcher(t, 3, nil)

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		job := &funcJob{id: fmt.Sprint(i), fn: func(context.Context) error {
			ran.Add(1)
			return nil
		}}
		require.NoError(t, d.Submit(context.Background(), job, func(err error) {
			assert.NoError(t, err)
			wg.Done()
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	d := newTestDispatcher(t, 2, nil)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		job := &funcJob{id: fmt.Sprint(i), fn: func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}}
		require.NoError(t, d.Submit(context.Background(), job, func(error) { wg.Done() }))
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcherRecordsRuns(t *testing.T) {
	rec := &memRecorder{}
	d := newTestDispatcher(t, 1, rec)

	done := make(chan error, 2)
	require.NoError(t, d.Submit(context.Background(), &funcJob{id: "ok", fn: func(context.Context) error { return nil }}, func(err error) { done <- err }))
	require.NoError(t, <-done)
	require.NoError(t, d.Submit(context.Background(), &funcJob{id: "bad", fn: func(context.Context) error { return errors.New("boom") }}, func(err error) { done <- err }))
	assert.EqualError(t, <-done, "boom")

	assert.Equal(t, []string{
		"pending ok", "processing rec-ok", "completed rec-ok",
		"pending bad", "processing rec-bad", "failed rec-bad",
	}, rec.snapshot())
}

func TestDispatcherSubmitAfterStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	d := NewDispatcher(1, nil, log)
	d.Run(context.Background())
	d.Stop()
	d.Stop()

	err := d.Submit(context.Background(), &funcJob{id: "late", fn: func(context.Context) error { return nil }}, nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcherSubmitHonoursContext(t *testing.T) {
	d := newTestDispatcher(t, 1, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Submit(context.Background(), &funcJob{id: "busy", fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}, nil))
	<-started
	defer close(release)

	// One job can wait in the dispatch loop; the next submit blocks.
	_ = d.Submit(context.Background(), &funcJob{id: "queued", fn: func(context.Context) error { return nil }}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Submit(ctx, &funcJob{id: "blocked", fn: func(context.Context) error { return nil }}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
