// Package redis 提供实时计数实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-observability-api/internal/domain/entity"
)

// 实时键保留两天，跨日查询窗口关闭后自然回收
const realtimeTTL = 48 * time.Hour

// RealtimeCounters 按自然日的实时累计值。
// 落库走批量缓冲有秒级延迟，这里的计数在采纳请求时同步自增，
// 为看板提供"今天到现在"的低延迟读数。
type RealtimeCounters struct {
	client *Client
}

// NewRealtimeCounters 创建实时计数器
func NewRealtimeCounters(client *Client) *RealtimeCounters {
	return &RealtimeCounters{client: client}
}

func dayKey(prefix string, day time.Time) string {
	return fmt.Sprintf("%s:%s", prefix, day.UTC().Format("2006-01-02"))
}

// Record 累加一条已采纳的指标记录，整个 pipeline 失败只影响实时读数
func (r *RealtimeCounters) Record(ctx context.Context, record *entity.MetricRecord) error {
	ctx, span := tracer.Start(ctx, "redis.RealtimeCounters.Record")
	defer span.End()

	day := record.Timestamp
	pipe := r.client.rdb.Pipeline()

	pipe.Incr(ctx, dayKey("requests:total", day))
	pipe.Expire(ctx, dayKey("requests:total", day), realtimeTTL)

	if record.Status != entity.StatusSuccess {
		pipe.Incr(ctx, dayKey("requests:errors", day))
		pipe.Expire(ctx, dayKey("requests:errors", day), realtimeTTL)
	}

	pipe.IncrBy(ctx, dayKey("tokens:total", day), int64(record.TotalTokens()))
	pipe.Expire(ctx, dayKey("tokens:total", day), realtimeTTL)

	pipe.IncrByFloat(ctx, dayKey("cost:total", day), record.CostUSD)
	pipe.Expire(ctx, dayKey("cost:total", day), realtimeTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Snapshot 当日实时读数
type Snapshot struct {
	Date          string  `json:"date"`
	TotalRequests int64   `json:"total_requests"`
	ErrorCount    int64   `json:"error_count"`
	TotalTokens   int64   `json:"total_tokens"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// Today 读取指定日期的实时累计值，缺失的键按零处理
func (r *RealtimeCounters) Today(ctx context.Context, day time.Time) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "redis.RealtimeCounters.Today")
	defer span.End()

	pipe := r.client.rdb.Pipeline()
	reqCmd := pipe.Get(ctx, dayKey("requests:total", day))
	errCmd := pipe.Get(ctx, dayKey("requests:errors", day))
	tokCmd := pipe.Get(ctx, dayKey("tokens:total", day))
	costCmd := pipe.Get(ctx, dayKey("cost:total", day))

	// 单个键缺失返回 redis.Nil，不算失败
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return nil, err
	}

	s := &Snapshot{Date: day.UTC().Format("2006-01-02")}
	s.TotalRequests, _ = reqCmd.Int64()
	s.ErrorCount, _ = errCmd.Int64()
	s.TotalTokens, _ = tokCmd.Int64()
	s.TotalCostUSD, _ = costCmd.Float64()
	return s, nil
}
