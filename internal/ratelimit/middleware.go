package ratelimit

import (
	"math"
	"strconv"

	"github.com/ZanzyTHEbar/judge-relay/internal/errors"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware limits requests per client IP
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := rl.Allow("ip:" + c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}

			retryAfter := strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			c.Header("Retry-After", retryAfter)
			errors.Abort(c, errors.NewRateLimitError(retryAfter+"s"))
			return
		}

		c.Next()
	}
}
