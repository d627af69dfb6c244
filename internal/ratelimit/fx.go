package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

func Provide(p Params) *SearchLimiter {
	if !p.Cfg.RateLimit.Enabled {
		return nil
	}
	if p.Redis == nil {
		p.Log.Named("ratelimit").Warn("rate limit enabled without redis; search is unlimited")
		return nil
	}
	return NewSearchLimiter(NewTokenBucket(p.Redis), p.Cfg.RateLimit)
}
