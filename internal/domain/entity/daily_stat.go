package entity

import "time"

// DailyStat 按自然日的汇总行。
// 由日汇总整行重算替换，从不部分更新，重复执行结果一致。
type DailyStat struct {
	ID   int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Date time.Time `json:"date" gorm:"type:date;uniqueIndex;not null"`

	TotalRequests int64 `json:"total_requests" gorm:"not null;default:0"`
	SuccessCount  int64 `json:"success_count" gorm:"not null;default:0"`
	ErrorCount    int64 `json:"error_count" gorm:"not null;default:0"`
	TimeoutCount  int64 `json:"timeout_count" gorm:"not null;default:0"`

	TotalInputTokens  int64 `json:"total_input_tokens" gorm:"not null;default:0"`
	TotalOutputTokens int64 `json:"total_output_tokens" gorm:"not null;default:0"`

	TotalCostUSD float64 `json:"total_cost_usd" gorm:"type:numeric(18,8);not null;default:0"`
	CostSavedUSD float64 `json:"cost_saved_usd" gorm:"type:numeric(18,8);not null;default:0"`

	AvgLatencyMs float64 `json:"avg_latency_ms" gorm:"not null;default:0"`
	P95LatencyMs int     `json:"p95_latency_ms" gorm:"not null;default:0"`

	CacheHitCount int64   `json:"cache_hit_count" gorm:"not null;default:0"`
	CacheHitRate  float64 `json:"cache_hit_rate" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (DailyStat) TableName() string {
	return "daily_stats"
}

// ModelStat 按 (日期, 模型) 的汇总行，与 DailyStat 同为幂等替换语义
type ModelStat struct {
	ID    int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Date  time.Time `json:"date" gorm:"type:date;uniqueIndex:idx_model_stats_date_model;not null"`
	Model string    `json:"model" gorm:"type:varchar(64);uniqueIndex:idx_model_stats_date_model;not null"`

	RequestCount int64 `json:"request_count" gorm:"not null;default:0"`
	ErrorCount   int64 `json:"error_count" gorm:"not null;default:0"`

	InputTokens  int64 `json:"input_tokens" gorm:"not null;default:0"`
	OutputTokens int64 `json:"output_tokens" gorm:"not null;default:0"`

	CostUSD      float64 `json:"cost_usd" gorm:"type:numeric(18,8);not null;default:0"`
	AvgLatencyMs float64 `json:"avg_latency_ms" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ModelStat) TableName() string {
	return "model_stats"
}
