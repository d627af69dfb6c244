package lock

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

// Provide prefers the redis lock so projections serialize across replicas.
func Provide(p Params) Locker {
	if p.Redis != nil {
		return NewRedisLocker(p.Redis)
	}
	p.Log.Named("lock").Warn("redis not configured, projection locks are process-local")
	return NewLocalLocker()
}
