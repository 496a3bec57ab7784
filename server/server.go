package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wordflowlab/careerpilot"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/server/handlers"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// Server represents the CareerPilot HTTP front door
type Server struct {
	config *Config
	router *gin.Engine
	server *http.Server
	deps   *Dependencies

	logger        *logging.Logger
	metrics       *observability.MetricsManager
	healthChecker *observability.HealthChecker
	tracing       *observability.TracingManager
	extra         []gin.HandlerFunc
}

// Dependencies holds all dependencies for the server
type Dependencies struct {
	CV      handlers.CVProcessor
	Courses handlers.CourseRecommender
}

// New creates a new Server instance with the given configuration
func New(config *Config, deps *Dependencies, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.HealthEndpoint == "" {
		config.HealthEndpoint = "/health"
	}
	if config.Metrics.Endpoint == "" {
		config.Metrics.Endpoint = "/metrics"
	}
	if deps == nil || deps.CV == nil || deps.Courses == nil {
		return nil, errors.New("server dependencies cannot be nil")
	}

	switch config.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:        config,
		router:        gin.New(),
		deps:          deps,
		logger:        logging.Default,
		healthChecker: observability.NewHealthChecker(careerpilot.Version),
	}
	if config.Metrics.Enabled {
		s.metrics = observability.NewMetricsManager("careerpilot")
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	if s.tracing.Enabled() {
		s.router.Use(s.tracing.Middleware())
	}
	s.router.Use(structuredLoggingMiddleware(s.logger))

	if s.config.CORS.Enabled {
		s.router.Use(corsMiddleware(s.config.CORS))
	}
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
	s.router.Use(s.extra...)
}

// Start starts the HTTP server. 正常关闭时返回 nil。
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info(context.Background(), "server.starting", map[string]interface{}{
		"addr":    s.config.Addr,
		"mode":    s.config.Mode,
		"version": careerpilot.Version,
	})

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info(ctx, "server.stopping", nil)
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info(ctx, "server.stopped", nil)
	return nil
}

// Router returns the underlying Gin router for advanced customization
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Metrics 返回指标管理器, 未启用时为 nil
func (s *Server) Metrics() *observability.MetricsManager {
	return s.metrics
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c *gin.Context) {
	info := s.healthChecker.Check(c.Request.Context())
	status := http.StatusOK
	if info.Status != observability.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, info)
}
