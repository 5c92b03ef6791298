// Package aggregate 实现遥测记录的按需聚合
package aggregate

import (
	"time"

	"llm-observability-api/internal/domain/entity"
)

// KPIs 区间核心指标
type KPIs struct {
	TotalRequests int64   `json:"total_requests"`
	SuccessCount  int64   `json:"success_count"`
	ErrorCount    int64   `json:"error_count"`
	SuccessRate   float64 `json:"success_rate"`
	ErrorRate     float64 `json:"error_rate"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`

	TotalInputTokens  int64 `json:"total_input_tokens"`
	TotalOutputTokens int64 `json:"total_output_tokens"`
	TotalTokens       int64 `json:"total_tokens"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	CostSavedUSD float64 `json:"cost_saved_usd"`

	CacheHitCount int64   `json:"cache_hit_count"`
	CacheHitRate  float64 `json:"cache_hit_rate"`

	AvgTokensPerSecond float64 `json:"avg_tokens_per_second"`
}

// ModelBreakdown 按模型的成本与用量拆分
type ModelBreakdown struct {
	Model        string  `json:"model"`
	Requests     int64   `json:"requests"`
	TotalTokens  int64   `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CostPercent  float64 `json:"cost_percent"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// TrendPoint 单个时间桶的趋势数据。
// 桶边界对齐到桶长整倍数，区间内无数据的桶不省略，计数为零。
type TrendPoint struct {
	BucketStart time.Time `json:"bucket_start"`

	Requests   int64   `json:"requests"`
	ErrorCount int64   `json:"error_count"`
	ErrorRate  float64 `json:"error_rate"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`

	TotalTokens        int64   `json:"total_tokens"`
	CostUSD            float64 `json:"cost_usd"`
	AvgTokensPerSecond float64 `json:"avg_tokens_per_second"`
}

// Dashboard 看板完整载荷，各子端点从中取片段
type Dashboard struct {
	Range       string    `json:"range"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`

	KPIs        KPIs             `json:"kpis"`
	CostByModel []ModelBreakdown `json:"cost_by_model"`
	Trend       []TrendPoint     `json:"trend"`

	Models    []string `json:"models"`
	UserRoles []string `json:"user_roles"`

	RecentRequests []*entity.MetricRecord `json:"recent_requests"`
}
