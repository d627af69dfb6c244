package ratelimit

import (
	"context"
	"testing"

	"github.com/smallbiznis/payledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchLimiterDisabledAllows(t *testing.T) {
	var limiter *SearchLimiter
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowAccount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Nil(t, NewSearchLimiter(nil, config.RateLimitConfig{Enabled: true, SearchRate: 1, SearchBurst: 1}))
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, "20s", bucketTTL(1, 10).String())
	assert.Equal(t, "1s", bucketTTL(1000, 1).String())
}

func TestScriptReplyConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(1720000000000), toInt("1720000000000"))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
	assert.Zero(t, toFloat(nil))
}
