// Package ratelimit 按客户端限制 /api 请求速率。
// 每次 CV 上传都会触发 embedding 与对话模型调用, 限流保护的是外部配额。
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucketLimiter 令牌桶限流器, 每个 key 一个桶
type TokenBucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // 每秒补充的令牌数
	capacity float64

	// idle 桶满且超过 idle 未使用时回收
	idle      time.Duration
	lastPrune time.Time
	now       func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucketLimiter 创建限流器。
// perMinute 为稳定速率, burst 为桶容量, burst <= 0 时等于 perMinute。
func NewTokenBucketLimiter(perMinute, burst int) *TokenBucketLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucketLimiter{
		buckets:  make(map[string]*bucket),
		rate:     float64(perMinute) / 60,
		capacity: float64(burst),
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Limit 返回桶容量
func (l *TokenBucketLimiter) Limit() int { return int(l.capacity) }

// Allow 尝试消费一个令牌。
// 被拒绝时返回下一个令牌可用前需要等待的时间。
func (l *TokenBucketLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(b.tokens+elapsed*l.rate, l.capacity)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// Remaining 返回 key 当前可用的整数令牌数
func (l *TokenBucketLimiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		return int(l.capacity)
	}
	elapsed := l.now().Sub(b.lastRefill).Seconds()
	return int(math.Min(b.tokens+elapsed*l.rate, l.capacity))
}

// Len 当前跟踪的 key 数
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune 调用方持有 mu
func (l *TokenBucketLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < l.idle {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.idle {
			delete(l.buckets, key)
		}
	}
}
