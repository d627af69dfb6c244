package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/payledger/internal/config"
)

const keySearchAccount = "ledger:search:account:%s"

// SearchLimiter bounds search requests per gateway account.
type SearchLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewSearchLimiter(bucket *TokenBucket, cfg config.RateLimitConfig) *SearchLimiter {
	if bucket == nil || !cfg.Enabled {
		return nil
	}
	return &SearchLimiter{bucket: bucket, rate: cfg.SearchRate, burst: cfg.SearchBurst}
}

func (l *SearchLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowAccount always allows when the limiter is disabled.
func (l *SearchLimiter) AllowAccount(ctx context.Context, accountID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keySearchAccount, strings.TrimSpace(accountID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
