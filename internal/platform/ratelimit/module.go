package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/pkg/config"
)

// Module selects the limiter backend from config and ties its shutdown to
// the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(newLimiter),
)

func newLimiter(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (Limiter, error) {
	var limiter Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		limiter = NewRedisLimiter(rdb, cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
		log.Infow("ratelimit_backend_selected", "backend", "redis", "addr", cfg.RateLimit.RedisAddr)
	default:
		limiter = NewMemoryLimiter(cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
		log.Infow("ratelimit_backend_selected", "backend", "memory")
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return limiter.Close()
		},
	})
	return limiter, nil
}
