package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager Prometheus 指标管理器
type MetricsManager struct {
	// HTTP 指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// 业务指标
	uploadsTotal    *prometheus.CounterVec
	chunksTotal     prometheus.Counter
	recordsUpserted prometheus.Counter
	ingestDuration  prometheus.Histogram
	agentRounds     *prometheus.HistogramVec
	recommendations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsManager 创建指标管理器, 使用独立的 Registry
func NewMetricsManager(namespace string) *MetricsManager {
	if namespace == "" {
		namespace = "careerpilot"
	}

	m := &MetricsManager{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	// 上传按结果分类: ok / bad_request / failed
	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cv_uploads_total",
			Help:      "CV uploads by outcome",
		},
		[]string{"outcome", "ext"},
	)

	m.chunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_chunks_total",
		Help:      "Chunks produced by the ingestion pipeline",
	})

	m.recordsUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_records_upserted_total",
		Help:      "Records written to the vector store",
	})

	m.ingestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "End-to-end ingestion time per document",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.agentRounds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_rounds",
			Help:      "Model rounds per agent run",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
		[]string{"task"},
	)

	m.recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "course_recommendations_total",
			Help:      "Course recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.uploadsTotal,
		m.chunksTotal,
		m.recordsUpserted,
		m.ingestDuration,
		m.agentRounds,
		m.recommendations,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry 返回底层 Registry, 测试中用于读取指标
func (m *MetricsManager) Registry() *prometheus.Registry { return m.registry }

// Middleware Prometheus 中间件
func (m *MetricsManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		m.requestsTotal.WithLabelValues(c.Request.Method, path, statusClass(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler Prometheus 指标暴露端点
func (m *MetricsManager) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return gin.WrapH(h)
}

// ObserveUpload 记录一次简历上传的结果
func (m *MetricsManager) ObserveUpload(outcome, ext string) {
	m.uploadsTotal.WithLabelValues(outcome, ext).Inc()
}

// ObserveIngest 记录一次导入的规模与耗时
func (m *MetricsManager) ObserveIngest(chunks, upserted int, elapsed time.Duration) {
	m.chunksTotal.Add(float64(chunks))
	m.recordsUpserted.Add(float64(upserted))
	m.ingestDuration.Observe(elapsed.Seconds())
}

// ObserveAgentRounds 记录一次工具循环使用的轮数
func (m *MetricsManager) ObserveAgentRounds(task string, rounds int) {
	m.agentRounds.WithLabelValues(task).Observe(float64(rounds))
}

// ObserveRecommendation 记录一次课程推荐的结果
func (m *MetricsManager) ObserveRecommendation(outcome string) {
	m.recommendations.WithLabelValues(outcome).Inc()
}

// statusClass 返回 HTTP 状态码类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
