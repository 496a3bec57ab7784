package server

import (
	"time"

	"github.com/wordflowlab/careerpilot/pkg/appconfig"
	"github.com/wordflowlab/careerpilot/server/auth"
)

// Config holds all configuration for the HTTP front door
type Config struct {
	Addr string
	Mode string // gin mode: "debug", "release" or "test"

	// UploadDir 上传文件的暂存根目录, 为空时使用系统临时目录
	UploadDir      string
	MaxUploadBytes int64

	CORS           CORSConfig
	Metrics        MetricsConfig
	RateLimit      RateLimitConfig
	Auth           auth.Config
	HealthEndpoint string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled      bool
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// RateLimitConfig /api 路由的按 IP 限流, RequestsPerMinute 为 0 表示关闭
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":3000",
		Mode:           "release",
		MaxUploadBytes: 20 << 20,
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Request-ID"},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		HealthEndpoint: "/health",
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    120 * time.Second,
	}
}

// FromAppConfig 由应用配置的 server 段生成 Config
func FromAppConfig(sc appconfig.ServerConfig) *Config {
	cfg := DefaultConfig()
	if sc.Addr != "" {
		cfg.Addr = sc.Addr
	}
	if sc.Mode != "" {
		cfg.Mode = sc.Mode
	}
	cfg.UploadDir = sc.UploadDir
	if sc.MaxUploadMB > 0 {
		cfg.MaxUploadBytes = sc.MaxUploadMB << 20
	}
	if sc.ReadTimeout > 0 {
		cfg.ReadTimeout = sc.ReadTimeout
	}
	if sc.WriteTimeout > 0 {
		cfg.WriteTimeout = sc.WriteTimeout
	}
	cfg.RateLimit = RateLimitConfig{
		RequestsPerMinute: sc.RateLimit.RequestsPerMinute,
		Burst:             sc.RateLimit.Burst,
	}
	cfg.Auth = auth.Config{
		APIKeys:   sc.Auth.APIKeys,
		JWTSecret: sc.Auth.JWTSecret,
		JWTIssuer: sc.Auth.JWTIssuer,
	}
	return cfg
}
