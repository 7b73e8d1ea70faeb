package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker: dispatcher stopped")

// Job represents a unit of work to be executed.
// Execute returns nil when the work item is settled, including when its
// failure has been recorded; an error means the item should be delivered
// again.
type Job interface {
	Execute(ctx context.Context) error
	ID() string   // A unique identifier for the job
	Type() string // The job type, e.g. IDENTIFY_CLIPS
}

// Payloader is implemented by jobs whose input is worth recording.
type Payloader interface {
	Payload() interface{}
}

// Recorder keeps an audit trail of job runs.
type Recorder interface {
	Pending(ctx context.Context, job Job) (string, error)
	Processing(ctx context.Context, recordID string) error
	Finished(ctx context.Context, recordID string, jobErr error) error
}

// task is a submitted job with its completion callback.
type task struct {
	job      Job
	recordID string
	done     func(error)
}

// Worker is responsible for processing jobs.
// It runs in its own goroutine and pulls jobs from its dedicated channel.
type Worker struct {
	ID         int
	WorkerPool chan chan task // A pool of channels, used to register this worker's job channel
	JobChannel chan task      // A channel specific to this worker, to receive jobs
	quit       <-chan struct{}
	wg         *sync.WaitGroup
	recorder   Recorder
	log        logrus.FieldLogger
}

// Start makes the Worker listen for jobs on its JobChannel. Jobs run with
// ctx; cancelling it aborts the running job.
func (w Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			// Register the current worker's JobChannel to the worker pool.
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-w.quit:
				return
			}

			select {
			case t := <-w.JobChannel:
				w.run(ctx, t)
			case <-w.quit:
				w.log.WithField("worker_id", w.ID).Debug("Worker stopping")
				return
			}
		}
	}()
}

func (w Worker) run(ctx context.Context, t task) {
	log := w.log.WithFields(logrus.Fields{"worker_id": w.ID, "job_id": t.job.ID(), "job_type": t.job.Type()})
	if t.recordID != "" {
		if err := w.recorder.Processing(ctx, t.recordID); err != nil {
			log.WithError(err).Warn("Failed to record job start")
		}
	}

	log.Info("Started job")
	err := t.job.Execute(ctx)
	if err != nil {
		log.WithError(err).Error("Job did not complete, leaving it for redelivery")
	} else {
		log.Info("Finished job")
	}

	if t.recordID != "" {
		if rerr := w.recorder.Finished(context.WithoutCancel(ctx), t.recordID, err); rerr != nil {
			log.WithError(rerr).Warn("Failed to record job outcome")
		}
	}
	if t.done != nil {
		t.done(err)
	}
}

// Dispatcher manages a pool of workers and dispatches jobs to them.
type Dispatcher struct {
	MaxWorkers int
	WorkerPool chan chan task // A pool of worker job channels
	JobQueue   chan task      // Incoming jobs waiting for a worker
	Workers    []Worker

	recorder Recorder
	log      logrus.FieldLogger
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a new Dispatcher. recorder may be nil.
func NewDispatcher(maxWorkers int, recorder Recorder, log logrus.FieldLogger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		MaxWorkers: maxWorkers,
		WorkerPool: make(chan chan task, maxWorkers),
		JobQueue:   make(chan task),
		Workers:    make([]Worker, 0, maxWorkers),
		recorder:   recorder,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// Run starts the dispatcher and its workers.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.WithField("workers", d.MaxWorkers).Info("Dispatcher starting")
	for i := 1; i <= d.MaxWorkers; i++ {
		w := Worker{
			ID:         i,
			WorkerPool: d.WorkerPool,
			JobChannel: make(chan task),
			quit:       d.quit,
			wg:         &d.wg,
			recorder:   d.recorder,
			log:        d.log,
		}
		d.Workers = append(d.Workers, w)
		w.Start(ctx)
	}

	d.wg.Add(1)
	go d.dispatch()
}

// dispatch hands each queued job to the next idle worker.
func (d *Dispatcher) dispatch() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.JobQueue:
			select {
			case jobChannel := <-d.WorkerPool:
				select {
				case jobChannel <- t:
				case <-d.quit:
					if t.done != nil {
						t.done(ErrStopped)
					}
					return
				}
			case <-d.quit:
				if t.done != nil {
					t.done(ErrStopped)
				}
				return
			}
		case <-d.quit:
			return
		}
	}
}

// Submit blocks until a worker has capacity for job, ctx is done, or the
// dispatcher stops. done is called with the job's result once it ran.
func (d *Dispatcher) Submit(ctx context.Context, job Job, done func(error)) error {
	t := task{job: job, done: done}
	if d.recorder != nil {
		id, err := d.recorder.Pending(ctx, job)
		if err != nil {
			d.log.WithError(err).WithField("job_id", job.ID()).Warn("Failed to record job")
		}
		t.recordID = id
	}

	select {
	case d.JobQueue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrStopped
	}
}

// Stop signals the dispatcher and all workers to stop and waits for running
// jobs to return.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.log.Info("Dispatcher: initiating shutdown")
		close(d.quit)
		d.wg.Wait()
		d.log.Info("Dispatcher: shutdown complete")
	})
}
