package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy 外部调用的重试策略, 由调用方注入
type Policy interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

// Permanent 标记不可重试的错误, 策略会立即返回原错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Exponential 基于指数退避的重试策略
type Exponential struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnRetry 每次失败后回调(可选), 用于记录日志
	OnRetry func(err error, wait time.Duration)
}

// NewExponential 创建指数退避策略, 零值参数使用默认值
func NewExponential(maxRetries uint64, initial, max time.Duration) *Exponential {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	return &Exponential{
		MaxRetries:      maxRetries,
		InitialInterval: initial,
		MaxInterval:     max,
	}
}

// Do 执行 op, 直到成功、遇到永久错误、超过重试次数或 ctx 取消
func (p *Exponential) Do(ctx context.Context, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, wait)
		}
	})
	return unwrapPermanent(err)
}

// None 不重试, 只执行一次
type None struct{}

func (None) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return unwrapPermanent(op(ctx))
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
