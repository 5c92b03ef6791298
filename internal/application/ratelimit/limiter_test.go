package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"llm-observability-api/internal/config"
	"llm-observability-api/internal/domain/entity"
)

type memCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counts: make(map[string]int64)}
}

func (s *memCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.counts[key]++
	return s.counts[key], nil
}

type recordingRepo struct {
	mu      sync.Mutex
	windows []*entity.RateLimitWindow
}

func (r *recordingRepo) UpsertWindow(ctx context.Context, w *entity.RateLimitWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = append(r.windows, w)
	return nil
}

func testLimiter(limit int, window time.Duration) (*Limiter, *memCounterStore, *recordingRepo) {
	store := newMemCounterStore()
	repo := &recordingRepo{}
	l := NewLimiter(config.RateLimitConfig{
		Enabled: true,
		Limit:   limit,
		Window:  window,
	}, store, repo)
	return l, store, repo
}

func TestAllowWithinLimit(t *testing.T) {
	l, _, repo := testLimiter(5, time.Minute)
	base := time.Date(2026, 8, 29, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		d, err := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		if want := 5 - (i + 1); d.Remaining != want {
			t.Errorf("request %d Remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	for i := 0; i < 2; i++ {
		d, err := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if d.Allowed {
			t.Fatal("request over limit admitted, want rejected")
		}
		if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
			t.Errorf("RetryAfter = %v, want within (0, window]", d.RetryAfter)
		}
	}

	// 每次拒绝都上报，审计行跟着最新计数走
	if len(repo.windows) != 2 {
		t.Fatalf("recorded windows = %d, want 2", len(repo.windows))
	}
	last := repo.windows[len(repo.windows)-1]
	if !last.Exceeded || last.Count != 7 {
		t.Errorf("recorded window = %+v, want exceeded at count 7", last)
	}
}

func TestExceededWindowTracksLatestCount(t *testing.T) {
	l, _, repo := testLimiter(2, time.Minute)
	base := time.Date(2026, 8, 29, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 6; i++ {
		if _, err := l.Allow(context.Background(), "u1", "/v1/ingest/metrics"); err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
	}

	// 4 次拒绝产生 4 次上报，同一窗口键在存储侧覆盖为最新计数
	if len(repo.windows) != 4 {
		t.Fatalf("recorded windows = %d, want 4", len(repo.windows))
	}
	windowStart := base.Truncate(time.Minute)
	for i, w := range repo.windows {
		if !w.WindowStart.Equal(windowStart) {
			t.Errorf("report %d WindowStart = %v, want %v", i, w.WindowStart, windowStart)
		}
		if want := int64(3 + i); w.Count != want {
			t.Errorf("report %d Count = %d, want %d", i, w.Count, want)
		}
	}
}

func TestWindowRollover(t *testing.T) {
	l, _, _ := testLimiter(2, time.Minute)

	now := time.Date(2026, 8, 29, 10, 0, 59, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		d, _ := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
		if i < 2 && !d.Allowed {
			t.Fatalf("request %d rejected within limit", i+1)
		}
		if i == 2 && d.Allowed {
			t.Fatal("third request admitted, want rejected")
		}
	}

	// 跨过窗口边界后配额全额恢复
	now = now.Add(2 * time.Second)
	d, _ := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
	if !d.Allowed {
		t.Fatal("request after window rollover rejected")
	}
	if d.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", d.Remaining)
	}
}

func TestSubjectsIsolated(t *testing.T) {
	l, _, _ := testLimiter(1, time.Minute)
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	if d, _ := l.Allow(context.Background(), "u1", "/v1/ingest/metrics"); !d.Allowed {
		t.Fatal("first request for u1 rejected")
	}
	if d, _ := l.Allow(context.Background(), "u1", "/v1/ingest/metrics"); d.Allowed {
		t.Fatal("second request for u1 admitted, want rejected")
	}
	// 不同主体与不同端点各自独立计数
	if d, _ := l.Allow(context.Background(), "u2", "/v1/ingest/metrics"); !d.Allowed {
		t.Fatal("request for u2 rejected")
	}
	if d, _ := l.Allow(context.Background(), "u1", "/v1/ingest/events/security"); !d.Allowed {
		t.Fatal("request for other endpoint rejected")
	}
}

func TestCounterFailureAdmits(t *testing.T) {
	l, store, _ := testLimiter(5, time.Minute)
	store.err = errors.New("connection refused")

	d, err := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Error("request rejected on counter failure, want fail-open")
	}
}

func TestDisabledLimiter(t *testing.T) {
	store := newMemCounterStore()
	l := NewLimiter(config.RateLimitConfig{Enabled: false, Limit: 1, Window: time.Minute}, store, nil)

	for i := 0; i < 10; i++ {
		d, err := l.Allow(context.Background(), "u1", "/v1/ingest/metrics")
		if err != nil || !d.Allowed {
			t.Fatalf("disabled limiter rejected request %d", i+1)
		}
	}
	if len(store.counts) != 0 {
		t.Error("disabled limiter should not touch counter store")
	}
}
