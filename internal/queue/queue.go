package queue

import (
	"context"
	"errors"
	"time"

	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
)

// Message is one delivery of an envelope. ID is the producer message id and
// is stable across redeliveries; Receipt identifies this delivery for Ack.
type Message struct {
	ID          string
	Body        []byte
	Receipt     string
	Redelivered bool
}

// Transport is an at-least-once source of envelopes. A message that is not
// acknowledged is delivered again after the visibility timeout.
type Transport interface {
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, body []byte) (string, error)
}

// Handler drives one decoded event through the ingest pipeline.
type Handler interface {
	Handle(ctx context.Context, event *eventdomain.Event) (eventdomain.InsertResult, error)
}

var (
	ErrClosed            = errors.New("transport_closed")
	ErrMalformedEnvelope = errors.New("malformed_envelope")
)
