package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smallbiznis/payledger/internal/queue"
)

const defaultVisibilityTimeout = 30 * time.Second

type entry struct {
	msg        queue.Message
	deliveries int
	deadline   time.Time
}

// Transport is an in-process queue with visibility timeout redelivery.
type Transport struct {
	mu         sync.Mutex
	pending    []*entry
	inflight   map[string]*entry
	visibility time.Duration
	notify     chan struct{}
	closed     bool
	seq        uint64
	now        func() time.Time
}

func New(visibility time.Duration) *Transport {
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}
	return &Transport{
		inflight:   map[string]*entry{},
		visibility: visibility,
		notify:     make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Publish enqueues body under an id derived from the envelope identity.
func (t *Transport) Publish(ctx context.Context, body []byte) (string, error) {
	return t.PublishWithID(ctx, queue.MessageID(body), body)
}

// PublishWithID enqueues body under a caller chosen message id.
func (t *Transport) PublishWithID(_ context.Context, id string, body []byte) (string, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", queue.ErrClosed
	}
	copied := append([]byte(nil), body...)
	t.pending = append(t.pending, &entry{msg: queue.Message{ID: id, Body: copied}})
	t.mu.Unlock()

	t.signal()
	return id, nil
}

func (t *Transport) Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		msgs, next, err := t.take(max)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}

		var expiry <-chan time.Time
		var expiryTimer *time.Timer
		if next > 0 {
			expiryTimer = time.NewTimer(next)
			expiry = expiryTimer.C
		}

		var done bool
		select {
		case <-ctx.Done():
			err = ctx.Err()
			done = true
		case <-deadline.C:
			done = true
		case <-t.notify:
		case <-expiry:
		}
		if expiryTimer != nil {
			expiryTimer.Stop()
		}
		if done {
			return nil, err
		}
	}
}

// take moves up to max messages in flight. next is the delay until the
// earliest in-flight message becomes visible again.
func (t *Transport) take(max int) ([]queue.Message, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, 0, queue.ErrClosed
	}

	now := t.now()
	var next time.Duration
	for receipt, e := range t.inflight {
		if !now.Before(e.deadline) {
			delete(t.inflight, receipt)
			t.pending = append(t.pending, e)
			continue
		}
		if d := e.deadline.Sub(now); next == 0 || d < next {
			next = d
		}
	}

	n := min(max, len(t.pending))
	out := make([]queue.Message, 0, n)
	for _, e := range t.pending[:n] {
		e.deliveries++
		e.deadline = now.Add(t.visibility)
		t.seq++
		e.msg.Receipt = e.msg.ID + "#" + strconv.FormatUint(t.seq, 10)
		e.msg.Redelivered = e.deliveries > 1
		t.inflight[e.msg.Receipt] = e
		out = append(out, e.msg)
	}
	t.pending = t.pending[n:]
	return out, next, nil
}

// Ack removes the delivery. Acking a receipt whose visibility already
// expired is a no-op.
func (t *Transport) Ack(_ context.Context, msg queue.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return queue.ErrClosed
	}
	delete(t.inflight, msg.Receipt)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.signal()
	return nil
}

// Len reports queued and in-flight message counts.
func (t *Transport) Len() (pending, inflight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), len(t.inflight)
}

func (t *Transport) signal() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}
