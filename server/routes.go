package server

import (
	"github.com/gin-gonic/gin"

	"github.com/wordflowlab/careerpilot/server/auth"
	"github.com/wordflowlab/careerpilot/server/handlers"
	"github.com/wordflowlab/careerpilot/server/ratelimit"
)

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.GET(s.config.HealthEndpoint, s.healthCheck)
	if s.metrics != nil {
		s.router.GET(s.config.Metrics.Endpoint, s.metrics.Handler())
	}

	api := s.router.Group("/api")
	if rl := s.config.RateLimit; rl.RequestsPerMinute > 0 {
		api.Use(ratelimit.Middleware(ratelimit.NewTokenBucketLimiter(rl.RequestsPerMinute, rl.Burst), ratelimit.ClientIP))
	}
	if s.config.Auth.Enabled() {
		api.Use(auth.Middleware(auth.NewAuthenticator(s.config.Auth)))
	}
	s.registerCareerRoutes(api)
}

// registerCareerRoutes registers the CV upload and course recommendation routes
func (s *Server) registerCareerRoutes(rg *gin.RouterGroup) {
	h := handlers.NewCareerHandler(s.deps.CV, s.deps.Courses, s.config.UploadDir, s.metrics, s.logger)

	rg.POST("/upload-cv", bodyLimitMiddleware(s.config.MaxUploadBytes), h.UploadCV)
	rg.POST("/course-recommendation", bodyLimitMiddleware(1<<20), h.RecommendCourses)
}
