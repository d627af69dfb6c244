package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/payledger/internal/config"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	obsmetrics "github.com/smallbiznis/payledger/internal/observability/metrics"
	"github.com/smallbiznis/payledger/internal/queue"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Transport queue.Transport
	Handler   queue.Handler
	Config    *config.ConsumerConfigHolder
	Metrics   *obsmetrics.ConsumerMetrics `optional:"true"`
}

// Consumer polls a transport and drives every message through the handler.
// A message is acknowledged only after the handler succeeds or the message
// is found to be permanently malformed.
type Consumer struct {
	log       *zap.Logger
	transport queue.Transport
	handler   queue.Handler
	cfg       *config.ConsumerConfigHolder
	metrics   *obsmetrics.ConsumerMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

func New(p Params) *Consumer {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticConsumerConfigHolder(config.DefaultConsumerConfig())
	}
	return &Consumer{
		log:       p.Log.Named("queue.consumer"),
		transport: p.Transport,
		handler:   p.Handler,
		cfg:       cfg,
		metrics:   p.Metrics,
	}
}

// Run polls until ctx is cancelled. Receive failures back off exponentially.
func (c *Consumer) Run(ctx context.Context) error {
	maxBackoff := c.cfg.Get().MaxBackoff
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = min(100*time.Millisecond, maxBackoff)
	retry.MaxInterval = maxBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg := c.cfg.Get()
		msgs, err := c.transport.Receive(ctx, cfg.BatchSize, cfg.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, queue.ErrClosed) {
				return err
			}
			c.metrics.IncReceiveError()
			sleep := retry.NextBackOff()
			if sleep == backoff.Stop {
				sleep = cfg.MaxBackoff
			}
			c.log.Warn("receive failed", zap.Error(err), zap.Duration("retry_in", sleep))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(sleep):
			}
			continue
		}
		retry.Reset()

		if len(msgs) == 0 {
			continue
		}
		c.metrics.ObserveBatch(len(msgs))
		c.ProcessBatch(ctx, msgs)
	}
}

// ProcessBatch handles msgs over a bounded worker pool and waits for all of
// them. The outcome of one message never affects another.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []queue.Message) {
	cfg := c.cfg.Get()
	p := pool.New().WithMaxGoroutines(cfg.Workers)
	for _, msg := range msgs {
		p.Go(func() {
			c.process(ctx, msg, cfg.MessageTimeout)
		})
	}
	p.Wait()
}

// process returns the outcome label. In-flight work is not cancelled by
// shutdown; it is bounded by the message timeout instead.
func (c *Consumer) process(ctx context.Context, msg queue.Message, timeout time.Duration) string {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	log := c.log.With(zap.String("message_id", msg.ID), zap.String("receipt", msg.Receipt))

	outcome := c.handle(workCtx, log, msg)
	if outcome != obsmetrics.MessageOutcomeRetry {
		if err := c.transport.Ack(workCtx, msg); err != nil {
			c.metrics.IncAckError()
			log.Warn("ack failed", zap.Error(err))
		}
	}
	c.metrics.ObserveMessage(outcome, time.Since(start))
	return outcome
}

func (c *Consumer) handle(ctx context.Context, log *zap.Logger, msg queue.Message) string {
	event, err := queue.Decode(msg)
	if err != nil {
		log.Warn("dropping malformed message", zap.Error(err), zap.ByteString("body", msg.Body))
		return obsmetrics.MessageOutcomeMalformed
	}

	log = log.With(
		zap.String("resource_external_id", event.ResourceExternalID),
		zap.String("event_type", event.EventType),
	)

	result, err := c.handler.Handle(ctx, event)
	switch {
	case err == nil && result == eventdomain.InsertResultIgnored:
		log.Debug("duplicate event acknowledged")
		return obsmetrics.MessageOutcomeIgnored
	case err == nil:
		return obsmetrics.MessageOutcomeInserted
	case errors.Is(err, eventdomain.ErrInvalidEvent):
		log.Warn("dropping invalid event", zap.Error(err), zap.ByteString("body", msg.Body))
		return obsmetrics.MessageOutcomeMalformed
	default:
		c.metrics.IncFailure(err)
		log.Error("event pipeline failed, leaving message for redelivery",
			zap.Error(err),
			zap.Bool("redelivered", msg.Redelivered),
		)
		return obsmetrics.MessageOutcomeRetry
	}
}

// Start runs the poll loop in the background.
func (c *Consumer) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Go(func() {
		if err := c.Run(runCtx); err != nil {
			c.log.Error("consumer stopped", zap.Error(err))
		}
	})
	c.log.Info("consumer started")
	return nil
}

// Stop cancels polling, waits for the in-flight batch and closes the
// transport.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.log.Warn("consumer stop timed out", zap.Error(ctx.Err()))
		}
	}

	if err := c.transport.Close(); err != nil {
		return err
	}
	c.log.Info("consumer stopped")
	return nil
}
