package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitWebhookHigherThanAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.FullPath() == "/webhook" {
			return "WEBHOOK"
		}
		return "ADMIN"
	}

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: groupFor,
		Limiter:  limiter,
		Rules: map[string]RateLimitRule{
			"ADMIN":   {Rate: 1, Burst: 2},
			"WEBHOOK": {Rate: 5, Burst: 10},
		},
	}))
	r.POST("/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/admin/users/:id/session/reset", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhook", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("webhook request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/session/reset", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("admin request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/session/reset", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("admin request 3 expected 429, got %d", resp.Code)
	}
}

func TestRateLimit429Body(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		KeyFor:  func(*gin.Context) string { return "admin" },
		Rules:   map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}},
	}))
	r.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", second.Header().Get("Retry-After"))
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(second.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if payload.Error.Details["group"] != "DEFAULT" {
		t.Fatalf("expected group DEFAULT, got %v", payload.Error.Details["group"])
	}
	if _, ok := payload.Error.Details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in details")
	}
}

func TestRateLimiterPrunesIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 5}

	limiter.Allow("203.0.113.7|WEBHOOK", rule)
	if limiter.Size() != 1 {
		t.Fatalf("expected one bucket, got %d", limiter.Size())
	}

	now = now.Add(bucketIdleTTL + time.Second)
	for i := 1; i < pruneEvery; i++ {
		limiter.Allow("198.51.100.1|WEBHOOK", rule)
	}
	if limiter.Size() != 1 {
		t.Fatalf("expected idle bucket pruned, got %d buckets", limiter.Size())
	}
}
