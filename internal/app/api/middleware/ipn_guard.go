package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/platform/ratelimit"
	"github.com/sokoyetu/paydesk/pkg/config"
	"github.com/sokoyetu/paydesk/pkg/logctx"
	"github.com/sokoyetu/paydesk/pkg/response"
)

// IPNGuardMiddleware fronts the webhook endpoint with a source check and a
// per-client rate limit. The gateway redelivers on non-2xx, so both
// rejections are safe: a throttled or unverified delivery comes back later.
func IPNGuardMiddleware(cfg *config.Config, limiter ratelimit.Limiter, log *zap.SugaredLogger) gin.HandlerFunc {
	allowedAgent := strings.TrimSpace(cfg.Pesapal.IPNAllowedAgent)

	return func(c *gin.Context) {
		if allowedAgent != "" && !strings.Contains(c.GetHeader("User-Agent"), allowedAgent) {
			logctx.FromGin(c, log).Warnw("payment_webhook_source_rejected",
				"client_ip", c.ClientIP(), "user_agent", c.GetHeader("User-Agent"))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open: losing the limiter must not lose payment deliveries.
			logctx.FromGin(c, log).Warnw("payment_webhook_ratelimit_error", "err", err)
			c.Next()
			return
		}
		if !allowed {
			logctx.FromGin(c, log).Warnw("payment_webhook_rate_limited", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.ErrorT[any](response.APIResponseCodeRateLimited, nil))
			return
		}

		c.Next()
	}
}
