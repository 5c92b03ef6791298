package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"llm-observability-api/internal/application/ratelimit"
	"llm-observability-api/internal/config"
)

type memCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (s *memCounterStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func newLimitedRouter(limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)

	limiter := ratelimit.NewLimiter(config.RateLimitConfig{
		Enabled: true,
		Limit:   limit,
		Window:  time.Minute,
	}, &memCounterStore{}, nil)

	engine := gin.New()
	engine.Use(RateLimit(limiter))
	engine.POST("/v1/ingest/metrics", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return engine
}

func doRequest(engine *gin.Engine, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest/metrics", nil)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	engine := newLimitedRouter(3)

	for i := 0; i < 3; i++ {
		if w := doRequest(engine, "u-1"); w.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d, want 202", i+1, w.Code)
		}
	}

	w := doRequest(engine, "u-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on rejected request")
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimitSubjectsIndependent(t *testing.T) {
	engine := newLimitedRouter(1)

	if w := doRequest(engine, "u-1"); w.Code != http.StatusAccepted {
		t.Fatalf("first subject: status = %d, want 202", w.Code)
	}
	if w := doRequest(engine, "u-2"); w.Code != http.StatusAccepted {
		t.Fatalf("second subject: status = %d, want 202", w.Code)
	}
	if w := doRequest(engine, "u-1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted subject: status = %d, want 429", w.Code)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RateLimit(nil))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
