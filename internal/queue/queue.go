// Package queue is the durable job substrate between the gateway and the
// workers. Delivery is at least once: a message stays pending until acked and
// is handed to another consumer once it has been idle long enough.
package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoMessage is returned by Receive when nothing arrived before the block
// timeout.
var ErrNoMessage = errors.New("queue: no message")

// ErrMalformed is returned by Receive for a delivered message that cannot be
// decoded. The returned Message still carries its ID so it can be acked.
var ErrMalformed = errors.New("queue: malformed message")

// Message is one delivered work item.
type Message struct {
	ID      string
	Event   string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Sender enqueues work items.
type Sender interface {
	Send(ctx context.Context, event string, payload any) error
}

// Receiver consumes work items.
type Receiver interface {
	Receive(ctx context.Context) (Message, error)
	Ack(ctx context.Context, id string) error
}
