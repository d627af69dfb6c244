package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerConfigWithDefaults(t *testing.T) {
	cfg := ConsumerConfig{Workers: 8}.withDefaults()

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WaitTime)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
}

func TestValidateConsumerConfig(t *testing.T) {
	require.NoError(t, validateConsumerConfig(DefaultConsumerConfig()))
	require.Error(t, validateConsumerConfig(ConsumerConfig{BatchSize: 5000}))
	require.Error(t, validateConsumerConfig(ConsumerConfig{Workers: -1}))
}

func TestStaticConsumerConfigHolder(t *testing.T) {
	holder := NewStaticConsumerConfigHolder(ConsumerConfig{BatchSize: 3})

	got := holder.Get()
	assert.Equal(t, 3, got.BatchSize)
	assert.Equal(t, 4, got.Workers)
}

func TestLoadReadsQueueSettings(t *testing.T) {
	t.Setenv("LEDGER_QUEUE_STREAM", "payments:events")
	t.Setenv("LEDGER_QUEUE_VISIBILITY_TIMEOUT", "45s")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DATABASE_TYPE", "SQLITE")

	cfg := Load()

	assert.Equal(t, "payments:events", cfg.Queue.Stream)
	assert.Equal(t, 45*time.Second, cfg.Queue.VisibilityTimeout)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.False(t, cfg.Redis.Enabled())
}
