package dto

import (
	"time"

	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
)

// MetricsQuery 看板查询参数
type MetricsQuery struct {
	Range    string `form:"range"`
	UserRole string `form:"role"`
	Model    string `form:"model"`
	Status   string `form:"status"`
}

// Filter 转换为仓储过滤条件
func (q *MetricsQuery) Filter() repository.MetricFilter {
	return repository.MetricFilter{
		UserRole: entity.UserRole(q.UserRole),
		Model:    q.Model,
		Status:   entity.RequestStatus(q.Status),
	}
}

// RecentQuery 最近请求查询参数
type RecentQuery struct {
	Limit  int    `form:"limit"`
	Model  string `form:"model"`
	Status string `form:"status"`
}

// RollupRequest 日汇总触发请求；Date 缺省为昨天（UTC）
type RollupRequest struct {
	Date string `json:"date,omitempty"`
}

// RollupAcceptedResponse 日汇总触发响应
type RollupAcceptedResponse struct {
	JobID string `json:"job_id"`
	Date  string `json:"date"`
}

// FilterOptionsResponse 看板可用过滤项
type FilterOptionsResponse struct {
	Values []string `json:"values"`
}

// LatencyPoint 延迟趋势点
type LatencyPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	AvgMs       float64   `json:"avg_ms"`
	P95Ms       float64   `json:"p95_ms"`
}

// VolumePoint 请求量趋势点
type VolumePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Requests    int64     `json:"requests"`
	ErrorCount  int64     `json:"error_count"`
}

// ErrorRatePoint 错误率趋势点
type ErrorRatePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	ErrorRate   float64   `json:"error_rate"`
}

// ThroughputPoint 吞吐趋势点
type ThroughputPoint struct {
	BucketStart     time.Time `json:"bucket_start"`
	TokensPerSecond float64   `json:"tokens_per_second"`
}
