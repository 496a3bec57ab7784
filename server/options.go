package server

import (
	"github.com/gin-gonic/gin"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// Option is a function that configures a Server
type Option func(*Server)

// WithMiddleware adds custom gin middlewares to the router
func WithMiddleware(middlewares ...gin.HandlerFunc) Option {
	return func(s *Server) {
		s.extra = append(s.extra, middlewares...)
	}
}

// WithLogger 替换请求日志使用的 Logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithTracing 在请求 ID 之后挂载 OpenTelemetry 中间件
func WithTracing(t *observability.TracingManager) Option {
	return func(s *Server) {
		s.tracing = t
	}
}

// WithHealthCheck 注册额外的健康检查, 例如向量库连通性
func WithHealthCheck(checks ...observability.HealthCheck) Option {
	return func(s *Server) {
		for _, c := range checks {
			s.healthChecker.RegisterCheck(c)
		}
	}
}
