package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wordflowlab/careerpilot/pkg/appconfig"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/server"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// runServe 启动 HTTP Server（使用 Gin）
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config file (defaults to $CAREERPILOT_CONFIG)")
	addr := fs.String("addr", "", "HTTP listen address (overrides server.addr)")
	mode := fs.String("mode", "", "Gin mode: debug, release, test")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 配置缺失时直接失败, 不等到第一个请求
	cfg, err := appconfig.FromEnvironment(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *mode != "" {
		cfg.Server.Mode = *mode
	}

	closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	tracing, err := observability.NewTracingManager(observability.TracingConfig{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "careerpilot",
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		OTLPInsecure: cfg.Tracing.Insecure,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	cv, err := a.cvService()
	if err != nil {
		return err
	}

	if cfg.Server.UploadDir != "" {
		if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
			return fmt.Errorf("create upload dir: %w", err)
		}
	}

	srv, err := server.New(server.FromAppConfig(cfg.Server),
		&server.Dependencies{CV: cv, Courses: a.courseService()},
		server.WithLogger(logging.Default),
		server.WithHealthCheck(a.checks...),
		server.WithTracing(tracing),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, "tracing.shutdown_failed", map[string]interface{}{"error": err.Error()})
	}
	logging.Flush(shutdownCtx)
	return nil
}
