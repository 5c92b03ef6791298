// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"llm-observability-api/internal/domain/entity"
)

// MetricFilter 指标查询过滤条件，多个条件之间为 AND 关系
type MetricFilter struct {
	UserRole entity.UserRole
	Model    string
	Status   entity.RequestStatus
}

// Empty 检查过滤条件是否为空
func (f MetricFilter) Empty() bool {
	return f.UserRole == "" && f.Model == "" && f.Status == ""
}

// RecentQuery 最近请求查询参数
type RecentQuery struct {
	Limit  int
	Model  string
	Status entity.RequestStatus
}

// MetricRepository 指标记录仓储接口
type MetricRepository interface {
	// BulkInsert 批量写入指标记录；重复 request_id 幂等忽略
	BulkInsert(ctx context.Context, records []*entity.MetricRecord) error

	// ListRange 加载 [from, to) 内匹配过滤条件的记录，按时间升序
	ListRange(ctx context.Context, from, to time.Time, filter MetricFilter) ([]*entity.MetricRecord, error)

	// ListRecent 按时间倒序返回最近 N 条记录
	ListRecent(ctx context.Context, q RecentQuery) ([]*entity.MetricRecord, error)

	// DistinctModels 返回出现过的模型列表
	DistinctModels(ctx context.Context) ([]string, error)

	// DistinctUserRoles 返回出现过的用户角色列表
	DistinctUserRoles(ctx context.Context) ([]string, error)

	// CountAll 返回记录总数
	CountAll(ctx context.Context) (int64, error)
}

// EventRepository 伴随事件仓储接口。
// 所有写入均为 best-effort 追加，不做 request_id 的引用完整性校验。
type EventRepository interface {
	CreateSecurityEvent(ctx context.Context, event *entity.SecurityEvent) error
	CreateRoutingDecision(ctx context.Context, decision *entity.RoutingDecision) error
	CreateCacheStat(ctx context.Context, stat *entity.CacheStat) error
	CreatePIIEvent(ctx context.Context, event *entity.PIIEvent) error

	// SumCacheCostSaved 统计 [from, to) 内缓存节省的成本
	SumCacheCostSaved(ctx context.Context, from, to time.Time) (float64, error)

	// SumRoutingCostSavings 统计 [from, to) 内路由节省的成本
	SumRoutingCostSavings(ctx context.Context, from, to time.Time) (float64, error)
}

// StatRepository 汇总行仓储接口
type StatRepository interface {
	// ReplaceDailyStat 以整行替换语义落一条日汇总
	ReplaceDailyStat(ctx context.Context, stat *entity.DailyStat) error

	// ReplaceModelStats 以整行替换语义落指定日期的模型汇总
	ReplaceModelStats(ctx context.Context, stats []*entity.ModelStat) error

	// GetDailyStat 读取指定日期的日汇总，不存在时返回 nil
	GetDailyStat(ctx context.Context, date time.Time) (*entity.DailyStat, error)

	// ListModelStats 读取指定日期的模型汇总
	ListModelStats(ctx context.Context, date time.Time) ([]*entity.ModelStat, error)
}

// RateLimitRepository 限流窗口仓储接口（用于上报，不参与判定）
type RateLimitRepository interface {
	// UpsertWindow 记录窗口计数与超限标记
	UpsertWindow(ctx context.Context, window *entity.RateLimitWindow) error
}
