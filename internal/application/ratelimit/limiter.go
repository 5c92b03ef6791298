// Package ratelimit 实现固定窗口限流
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"llm-observability-api/internal/config"
	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/metrics"
)

// CounterStore 窗口计数器存储。
// Incr 必须原子自增并返回自增后的值，键首次出现时按 ttl 设置过期。
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision 单次准入判定结果
type Decision struct {
	Allowed     bool
	Limit       int
	Remaining   int
	RetryAfter  time.Duration
	WindowStart time.Time
}

// Limiter 固定窗口限流器。
// 窗口按 floor(now/window) 对齐，判定为先自增后比较：
// 同一窗口内第 limit+1 次请求起全部拒绝，窗口翻转即全额恢复。
type Limiter struct {
	cfg   config.RateLimitConfig
	store CounterStore
	repo  repository.RateLimitRepository
	now   func() time.Time
}

// NewLimiter 创建限流器；repo 可为 nil，仅用于超限窗口的落库上报
func NewLimiter(cfg config.RateLimitConfig, store CounterStore, repo repository.RateLimitRepository) *Limiter {
	return &Limiter{
		cfg:   cfg,
		store: store,
		repo:  repo,
		now:   time.Now,
	}
}

// Allow 判定 subject 对 endpoint 的一次请求是否放行
func (l *Limiter) Allow(ctx context.Context, subject, endpoint string) (Decision, error) {
	if !l.cfg.Enabled {
		return Decision{Allowed: true, Limit: l.cfg.Limit, Remaining: l.cfg.Limit}, nil
	}

	now := l.now().UTC()
	windowStart := now.Truncate(l.cfg.Window)
	windowEnd := windowStart.Add(l.cfg.Window)

	key := fmt.Sprintf("ratelimit:%s:%s:%d", subject, endpoint, windowStart.Unix())
	count, err := l.store.Incr(ctx, key, l.cfg.Window)
	if err != nil {
		// 计数器不可用时放行，限流是保护手段而非正确性约束
		logger.Warn(ctx, "rate limit counter unavailable, admitting request",
			"subject", subject, "endpoint", endpoint, "error", err.Error())
		metrics.RateLimitDecisions.WithLabelValues(endpoint, "admitted").Inc()
		return Decision{Allowed: true, Limit: l.cfg.Limit, Remaining: 0, WindowStart: windowStart}, nil
	}

	d := Decision{
		Limit:       l.cfg.Limit,
		WindowStart: windowStart,
	}
	if count <= int64(l.cfg.Limit) {
		d.Allowed = true
		d.Remaining = l.cfg.Limit - int(count)
		metrics.RateLimitDecisions.WithLabelValues(endpoint, "admitted").Inc()
	} else {
		d.Allowed = false
		d.Remaining = 0
		d.RetryAfter = windowEnd.Sub(now)
		metrics.RateLimitDecisions.WithLabelValues(endpoint, "rejected").Inc()

		// 每次拒绝都把最新计数落到审计行，失败不影响判定
		if l.repo != nil {
			window := &entity.RateLimitWindow{
				Subject:     subject,
				Endpoint:    endpoint,
				WindowStart: windowStart,
				Count:       count,
				Exceeded:    true,
			}
			if repoErr := l.repo.UpsertWindow(ctx, window); repoErr != nil {
				logger.Warn(ctx, "failed to record exceeded rate limit window",
					"subject", subject, "error", repoErr.Error())
			}
		}
	}
	return d, nil
}
