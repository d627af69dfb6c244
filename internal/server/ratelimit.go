package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// rateLimitSearch keys on account_id. Requests without one are left to the
// handler to reject. A limiter failure lets the request through.
func (s *Server) rateLimitSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		accountID := strings.TrimSpace(c.Query("account_id"))
		if accountID == "" {
			c.Next()
			return
		}

		res, err := s.limiter.AllowAccount(c.Request.Context(), accountID)
		if err != nil {
			if s.log != nil {
				s.log.Warn("rate limiter unavailable", zap.String("account_id", accountID), zap.Error(err))
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
