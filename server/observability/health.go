package observability

import (
	"context"
	"sync"
	"time"
)

// HealthStatus 健康状态
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// DefaultCheckTimeout 单项检查的超时
const DefaultCheckTimeout = 3 * time.Second

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthInfo 健康信息
type HealthInfo struct {
	Status    HealthStatus           `json:"status"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 检查结果
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency"`
}

// HealthChecker 并发执行已注册的检查并汇总
type HealthChecker struct {
	mu        sync.RWMutex
	checks    []HealthCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		version:   version,
		timeout:   DefaultCheckTimeout,
	}
}

// RegisterCheck 注册健康检查
func (h *HealthChecker) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Check 执行所有健康检查。任一检查失败时整体为 degraded。
func (h *HealthChecker) Check(ctx context.Context) *HealthInfo {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	info := &HealthInfo{
		Status:    HealthStatusHealthy,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	if len(checks) == 0 {
		return info
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			r := CheckResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
			if err != nil {
				r.Status = HealthStatusDegraded
				r.Error = err.Error()
			}
			results[i] = r
		}()
	}
	wg.Wait()

	info.Checks = make(map[string]CheckResult, len(checks))
	for i, c := range checks {
		info.Checks[c.Name()] = results[i]
		if results[i].Status != HealthStatusHealthy {
			info.Status = HealthStatusDegraded
		}
	}
	return info
}

// FuncCheck 以函数形式实现的检查, 用于向量库 Ping 等
type FuncCheck struct {
	name string
	fn   func(context.Context) error
}

// NewFuncCheck 创建 FuncCheck
func NewFuncCheck(name string, fn func(context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, fn: fn}
}

func (c *FuncCheck) Name() string { return c.name }

func (c *FuncCheck) Check(ctx context.Context) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx)
}
