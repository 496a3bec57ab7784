package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中提取限流 key
type KeyFunc func(*gin.Context) string

// ClientIP 默认 key: 客户端 IP
func ClientIP(c *gin.Context) string { return c.ClientIP() }

// Middleware 超出速率时返回 429 纯文本, 并带 Retry-After
func Middleware(limiter *TokenBucketLimiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	limit := strconv.Itoa(limiter.Limit())

	return func(c *gin.Context) {
		k := key(c)
		ok, wait := limiter.Allow(k)
		c.Header("X-RateLimit-Limit", limit)
		if !ok {
			retryAfter := int(math.Ceil(wait.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.String(http.StatusTooManyRequests, "Too many requests. Please try again in %s.", time.Duration(retryAfter)*time.Second)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(k)))
		c.Next()
	}
}
