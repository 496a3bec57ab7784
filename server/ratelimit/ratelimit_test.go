package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(perMinute, burst int) (*TokenBucketLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewTokenBucketLimiter(perMinute, burst)
	l.now = clk.now
	l.lastPrune = clk.t
	return l, clk
}

func TestTokenBucketLimiter(t *testing.T) {
	t.Run("突发耗尽后拒绝", func(t *testing.T) {
		l, _ := newTestLimiter(60, 2)
		ok, _ := l.Allow("a")
		assert.True(t, ok)
		ok, _ = l.Allow("a")
		assert.True(t, ok)
		ok, wait := l.Allow("a")
		assert.False(t, ok)
		assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)
	})

	t.Run("按速率补充", func(t *testing.T) {
		l, clk := newTestLimiter(60, 1)
		ok, _ := l.Allow("a")
		require.True(t, ok)
		ok, _ = l.Allow("a")
		require.False(t, ok)
		clk.advance(time.Second)
		ok, _ = l.Allow("a")
		assert.True(t, ok)
	})

	t.Run("不同 key 互不影响", func(t *testing.T) {
		l, _ := newTestLimiter(60, 1)
		ok, _ := l.Allow("a")
		assert.True(t, ok)
		ok, _ = l.Allow("b")
		assert.True(t, ok)
		assert.Equal(t, 0, l.Remaining("a"))
		assert.Equal(t, 1, l.Remaining("c"))
	})

	t.Run("空闲桶被回收", func(t *testing.T) {
		l, clk := newTestLimiter(60, 1)
		_, _ = l.Allow("a")
		_, _ = l.Allow("b")
		assert.Equal(t, 2, l.Len())
		clk.advance(11 * time.Minute)
		_, _ = l.Allow("c")
		assert.Equal(t, 1, l.Len())
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newTestLimiter(60, 1)

	r := gin.New()
	r.Use(Middleware(l, nil))
	r.POST("/api/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "Too many requests")
}
