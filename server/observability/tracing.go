package observability

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wordflowlab/careerpilot"
)

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Environment string

	// OTLP HTTP exporter 地址, 例如 "localhost:4318"
	OTLPEndpoint string
	OTLPInsecure bool

	// SamplingRate 0.0 - 1.0, 0 视为全采样
	SamplingRate float64
}

// TracingManager 持有全局 TracerProvider。
// 未启用时 Middleware 为空操作, 业务代码里的 span 落到 otel 的 no-op 实现。
type TracingManager struct {
	config   TracingConfig
	provider *sdktrace.TracerProvider
}

// NewTracingManager 创建追踪管理器, 启用时注册为全局 TracerProvider 与 Propagator
func NewTracingManager(config TracingConfig) (*TracingManager, error) {
	if !config.Enabled {
		return &TracingManager{config: config}, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = "careerpilot"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.OTLPEndpoint == "" {
		config.OTLPEndpoint = "localhost:4318"
	}
	if config.SamplingRate <= 0 || config.SamplingRate > 1 {
		config.SamplingRate = 1.0
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
	if config.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(careerpilot.Version),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracingManager{config: config, provider: provider}, nil
}

// Enabled 是否导出 span
func (t *TracingManager) Enabled() bool {
	return t != nil && t.provider != nil
}

// Middleware 返回 Gin 追踪中间件
func (t *TracingManager) Middleware() gin.HandlerFunc {
	if !t.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(t.config.ServiceName, otelgin.WithTracerProvider(t.provider))
}

// Shutdown 刷新并关闭 exporter
func (t *TracingManager) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID 返回 ctx 中有效的 trace ID, 没有时为空串
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
