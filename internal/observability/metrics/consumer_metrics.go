package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	MessageOutcomeInserted  = "inserted"
	MessageOutcomeIgnored   = "ignored"
	MessageOutcomeRetry     = "retry"
	MessageOutcomeMalformed = "malformed"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonDBUnavailable        = "db_unavailable"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonLockTimeout          = "lock_timeout"
	FailureReasonUnknown              = "unknown"
)

// ConsumerMetrics captures queue consumer health.
type ConsumerMetrics struct {
	messages        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	receiveErrors   prometheus.Counter
	ackErrors       prometheus.Counter
	processDuration *prometheus.HistogramVec
	batchSize       prometheus.Observer
}

func NewConsumerMetrics(registerer prometheus.Registerer, cfg Config) *ConsumerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "payledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ledger_consumer_messages_total",
		Help:        "Queue messages handled by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ledger_consumer_failures_total",
		Help:        "Retryable pipeline failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	receiveErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ledger_consumer_receive_errors_total",
		Help:        "Transport receive failures.",
		ConstLabels: constLabels,
	})
	ackErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "ledger_consumer_ack_errors_total",
		Help:        "Transport acknowledge failures.",
		ConstLabels: constLabels,
	})
	processDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "ledger_consumer_message_duration_seconds",
		Help:        "Time from decode to acknowledge per message.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "ledger_consumer_batch_size",
		Help:        "Messages received per poll.",
		Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(messages, failures, receiveErrors, ackErrors, processDuration, batchSize)

	return &ConsumerMetrics{
		messages:        messages,
		failures:        failures,
		receiveErrors:   receiveErrors,
		ackErrors:       ackErrors,
		processDuration: processDuration,
		batchSize:       batchSize,
	}
}

// ObserveMessage records one handled message.
func (m *ConsumerMetrics) ObserveMessage(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
	m.processDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *ConsumerMetrics) IncFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.failures.WithLabelValues(ClassifyFailure(err)).Inc()
}

func (m *ConsumerMetrics) IncReceiveError() {
	if m == nil {
		return
	}
	m.receiveErrors.Inc()
}

func (m *ConsumerMetrics) IncAckError() {
	if m == nil {
		return
	}
	m.ackErrors.Inc()
}

func (m *ConsumerMetrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

// ClassifyFailure maps pipeline errors to a bounded reason label.
func ClassifyFailure(err error) string {
	if err == nil {
		return FailureReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureReasonDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return FailureReasonSerializationFailure
		case "55P03":
			return FailureReasonLockTimeout
		}
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57") {
			return FailureReasonDBUnavailable
		}
	}
	if errors.Is(err, gorm.ErrInvalidDB) {
		return FailureReasonDBUnavailable
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return FailureReasonDBUnavailable
	}
	return FailureReasonUnknown
}
