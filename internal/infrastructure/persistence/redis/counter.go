// Package redis 提供 Redis 限流计数器实现
package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// CounterStore 固定窗口计数器。
// INCR 与 EXPIRE 在同一 pipeline 内发出，键随窗口关闭自然过期。
type CounterStore struct {
	client *Client
}

// NewCounterStore 创建计数器存储
func NewCounterStore(client *Client) *CounterStore {
	return &CounterStore{client: client}
}

// Incr 原子自增并返回自增后的值
func (s *CounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, span := tracer.Start(ctx, "redis.CounterStore.Incr")
	span.SetAttributes(attribute.String("counter.key", key))
	defer span.End()

	pipe := s.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	// 每次都续期而不是只在首次设置，避免 INCR 成功而 EXPIRE 丢失留下永久键
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	count := incrCmd.Val()
	span.SetAttributes(attribute.Int64("counter.value", count))
	return count, nil
}
