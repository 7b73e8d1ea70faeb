package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/queue"
)

// Factory turns a delivered message into a job.
type Factory interface {
	Build(msg queue.Message) (Job, error)
}

// Consumer feeds messages from the job substrate into a dispatcher. A
// message is acked once its job settles; a job that fails stays pending and
// is redelivered after the stream's reclaim timeout.
type Consumer struct {
	queue      queue.Receiver
	factory    Factory
	dispatcher *Dispatcher
	log        logrus.FieldLogger
	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

// NewConsumer creates a consumer.
func NewConsumer(q queue.Receiver, factory Factory, dispatcher *Dispatcher, log logrus.FieldLogger) *Consumer {
	return &Consumer{queue: q, factory: factory, dispatcher: dispatcher, log: log, ErrorBackoff: time.Second}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := c.queue.Receive(ctx)
		if errors.Is(err, queue.ErrNoMessage) {
			continue
		}
		if errors.Is(err, queue.ErrMalformed) && msg.ID != "" {
			c.log.WithError(err).WithField("message_id", msg.ID).Error("Dropping undecodable work item")
			c.ack(msg.ID, c.log)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithError(err).Error("Failed to receive work item")
			if !sleep(ctx, c.ErrorBackoff) {
				return nil
			}
			continue
		}

		log := c.log.WithFields(logrus.Fields{"message_id": msg.ID, "event": msg.Event})
		job, err := c.factory.Build(msg)
		if err != nil {
			// Redelivery cannot fix a malformed item.
			log.WithError(err).Error("Dropping malformed work item")
			c.ack(msg.ID, log)
			continue
		}

		id := msg.ID
		err = c.dispatcher.Submit(ctx, job, func(jobErr error) {
			if jobErr == nil {
				c.ack(id, log)
			}
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) ack(id string, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.queue.Ack(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to ack work item, it will be redelivered")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
