package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"movecrm-api/internal/application/ratelimit"
)

type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: make(map[string]int64)}
}

func (s *fakeCounterStore) IncrementAndGet(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

func rateLimitedRouter(limiter *ratelimit.Limiter) *gin.Engine {
	g := testGuard(testRecord("tenant-1", "acme"))

	r := gin.New()
	r.Use(PublicTenant(g))
	r.Use(RateLimit(limiter, "public_quote_lookup"))
	r.GET("/quote", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func lookupRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/quote", nil)
	req.Header.Set(TenantSlugHeader, "acme")
	req.Header.Set("Origin", "https://widget.example.com")
	return req
}

func TestRateLimitAllowsWithinLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(newFakeCounterStore(), "test:ratelimit")
	r := rateLimitedRouter(limiter)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, lookupRequest())
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}
}

func TestRateLimitRejectsAboveLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(newFakeCounterStore(), "test:ratelimit")
	r := rateLimitedRouter(limiter)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, lookupRequest())
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, lookupRequest())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

// 计数存储不可用时拒绝请求，而不是放行
func TestRateLimitFailsClosedOnStoreError(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("connection refused")
	limiter := ratelimit.NewLimiter(store, "test:ratelimit")
	r := rateLimitedRouter(limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, lookupRequest())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimitRequiresTenantContext(t *testing.T) {
	limiter := ratelimit.NewLimiter(newFakeCounterStore(), "test:ratelimit")

	r := gin.New()
	r.Use(RateLimit(limiter, "public_quote_lookup"))
	r.GET("/quote", func(c *gin.Context) {
		t.Fatal("handler should not run")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quote", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestOriginFallsBackToReferer(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/quote", nil)
	c.Request.Header.Set("Referer", "https://site.example.com/contact")

	assert.Equal(t, "https://site.example.com/contact", RequestOrigin(c))

	c.Request.Header.Set("Origin", "https://site.example.com")
	assert.Equal(t, "https://site.example.com", RequestOrigin(c))
}

// 没有 Origin/Referer 的直连客户端退回客户端 IP，来源不可能为空
func TestRequestOriginFallsBackToClientIP(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/quote", nil)
	c.Request.RemoteAddr = "203.0.113.7:51324"

	assert.Equal(t, "203.0.113.7", RequestOrigin(c))
}

// 裸客户端（无任何来源头）也必须受来源级限流约束，不能只剩租户全局上限
func TestRateLimitBoundsHeaderlessClientPerOrigin(t *testing.T) {
	record := testRecord("tenant-1", "acme")
	record.Limits.PublicMaxRequests = 100
	record.Limits.PublicMaxPerOrigin = 2

	limiter := ratelimit.NewLimiter(newFakeCounterStore(), "test:ratelimit")

	r := gin.New()
	r.Use(PublicTenant(testGuard(record)))
	r.Use(RateLimit(limiter, "public_quote_lookup"))
	r.GET("/quote", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	bareRequest := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/quote", nil)
		req.Header.Set(TenantSlugHeader, "acme")
		req.RemoteAddr = "203.0.113.7:51324"
		return req
	}

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, bareRequest())
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, bareRequest())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
