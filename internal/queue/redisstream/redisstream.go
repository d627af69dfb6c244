package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payledger/internal/queue"
	"go.uber.org/zap"
)

const (
	fieldBody      = "body"
	fieldMessageID = "message_id"

	defaultVisibilityTimeout = 30 * time.Second
)

type Config struct {
	Stream            string
	Group             string
	Consumer          string
	VisibilityTimeout time.Duration
}

// Transport reads a stream through a consumer group. Pending entries idle
// longer than the visibility timeout are claimed back before new ones are
// read.
type Transport struct {
	client *redis.Client
	cfg    Config
	log    *zap.Logger
	closed atomic.Bool

	mu          sync.Mutex
	claimCursor string
}

func New(ctx context.Context, client *redis.Client, cfg Config, log *zap.Logger) (*Transport, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	if strings.TrimSpace(cfg.Stream) == "" || strings.TrimSpace(cfg.Group) == "" {
		return nil, errors.New("stream and group are required")
	}
	if strings.TrimSpace(cfg.Consumer) == "" {
		cfg.Consumer = "ledger-" + strings.ToLower(ulid.Make().String())
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = defaultVisibilityTimeout
	}

	t := &Transport{
		client:      client,
		cfg:         cfg,
		log:         log.Named("queue.redisstream"),
		claimCursor: "0-0",
	}
	if err := t.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) ensureGroup(ctx context.Context) error {
	err := t.client.XGroupCreateMkStream(ctx, t.cfg.Stream, t.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (t *Transport) Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error) {
	if t.closed.Load() {
		return nil, queue.ErrClosed
	}
	if max <= 0 {
		max = 1
	}

	claimed, err := t.reclaim(ctx, max)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return claimed, nil
	}

	if wait <= 0 {
		wait = time.Second
	}
	streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    t.cfg.Group,
		Consumer: t.cfg.Consumer,
		Streams:  []string{t.cfg.Stream, ">"},
		Count:    int64(max),
		Block:    wait,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []queue.Message
	for _, stream := range streams {
		for _, m := range stream.Messages {
			out = append(out, toMessage(m, false))
		}
	}
	return out, nil
}

func (t *Transport) reclaim(ctx context.Context, max int) ([]queue.Message, error) {
	t.mu.Lock()
	start := t.claimCursor
	t.mu.Unlock()

	msgs, next, err := t.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   t.cfg.Stream,
		Group:    t.cfg.Group,
		Consumer: t.cfg.Consumer,
		MinIdle:  t.cfg.VisibilityTimeout,
		Start:    start,
		Count:    int64(max),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}

	t.mu.Lock()
	t.claimCursor = next
	t.mu.Unlock()

	out := make([]queue.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m, true))
	}
	if len(out) > 0 {
		t.log.Debug("reclaimed idle entries", zap.Int("count", len(out)))
	}
	return out, nil
}

func (t *Transport) Ack(ctx context.Context, msg queue.Message) error {
	if err := t.client.XAck(ctx, t.cfg.Stream, t.cfg.Group, msg.Receipt).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Publish appends body under an id derived from the envelope identity. The
// id travels with the entry, so a retried XADD or a replayed envelope
// collapses to one stored event.
func (t *Transport) Publish(ctx context.Context, body []byte) (string, error) {
	id := queue.MessageID(body)
	_, err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.cfg.Stream,
		Values: map[string]any{
			fieldBody:      body,
			fieldMessageID: id,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// Close stops further receives. The shared client is closed by its owner.
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}

func toMessage(m redis.XMessage, redelivered bool) queue.Message {
	return queue.Message{
		ID:          stringValue(m.Values[fieldMessageID]),
		Body:        []byte(stringValue(m.Values[fieldBody])),
		Receipt:     m.ID,
		Redelivered: redelivered,
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return ""
	}
}
