package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/server/handlers"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// requestIDMiddleware adds a unique request ID to each request.
// 客户端传入的 X-Request-ID 只保留字母数字与连字符, 因为它会出现在暂存目录名中。
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := sanitizeRequestID(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logging.ContextWith(c.Request.Context(), map[string]interface{}{"request_id": requestID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sanitizeRequestID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() >= 64 {
			break
		}
		if r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// structuredLoggingMiddleware logs requests through the structured logger
func structuredLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		ctx := c.Request.Context()
		if traceID := observability.TraceID(ctx); traceID != "" {
			fields["trace_id"] = traceID
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error(ctx, "http.request", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn(ctx, "http.request", fields)
		default:
			logger.Info(ctx, "http.request", fields)
		}
	}
}

// corsMiddleware handles CORS
func corsMiddleware(config CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range config.AllowOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
			c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bodyLimitMiddleware 限制请求体大小
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
