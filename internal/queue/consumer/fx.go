package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payledger/internal/config"
	"github.com/smallbiznis/payledger/internal/queue"
	"github.com/smallbiznis/payledger/internal/queue/memory"
	"github.com/smallbiznis/payledger/internal/queue/redisstream"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("queue.consumer",
	fx.Provide(NewTransport),
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

type TransportParams struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

type TransportResult struct {
	fx.Out

	Transport queue.Transport
	Publisher queue.Publisher
}

// NewTransport selects the queue driver from LEDGER_QUEUE_DRIVER.
func NewTransport(p TransportParams) (TransportResult, error) {
	switch p.Cfg.Queue.Driver {
	case config.QueueDriverMemory:
		t := memory.New(p.Cfg.Queue.VisibilityTimeout)
		p.Log.Warn("using in-memory queue, events are lost on restart")
		return TransportResult{Transport: t, Publisher: t}, nil
	case config.QueueDriverRedis, "":
		if p.Redis == nil {
			return TransportResult{}, errors.New("redis queue driver requires REDIS_ADDR")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t, err := redisstream.New(ctx, p.Redis, redisstream.Config{
			Stream:            p.Cfg.Queue.Stream,
			Group:             p.Cfg.Queue.Group,
			Consumer:          p.Cfg.Queue.Consumer,
			VisibilityTimeout: p.Cfg.Queue.VisibilityTimeout,
		}, p.Log)
		if err != nil {
			return TransportResult{}, err
		}
		return TransportResult{Transport: t, Publisher: t}, nil
	default:
		return TransportResult{}, fmt.Errorf("unknown queue driver %q", p.Cfg.Queue.Driver)
	}
}

func registerLifecycle(lc fx.Lifecycle, c *Consumer) {
	lc.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.Stop,
	})
}
