package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"llm-observability-api/internal/application/ratelimit"
	"llm-observability-api/internal/interfaces/http/dto"
	apperrors "llm-observability-api/pkg/errors"
)

const (
	// UserIDHeader 上报方标识头，缺省按客户端 IP 限流
	UserIDHeader = "X-User-ID"
)

// RateLimit 固定窗口限流中间件。
// 限流主体取 X-User-ID 头，未携带时退化为客户端 IP。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		subject := c.GetHeader(UserIDHeader)
		if subject == "" {
			subject = c.ClientIP()
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		decision, err := limiter.Allow(c.Request.Context(), subject, endpoint)
		if err != nil {
			// 限流器故障时放行，避免影响上报
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			dto.FromAppError(c, apperrors.ErrRateLimitExceeded)
			c.Abort()
			return
		}

		c.Next()
	}
}
