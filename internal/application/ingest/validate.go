// Package ingest 实现指标采集：校验、成本计算与批量缓冲落库
package ingest

import (
	"strings"
	"time"

	"llm-observability-api/internal/domain/entity"
	apperrors "llm-observability-api/pkg/errors"
)

// Input 单条调用指标的上报载荷。
// 不含 cost 字段，成本一律由服务端按定价表推导。
type Input struct {
	RequestID string
	Timestamp time.Time

	UserID   string
	UserRole entity.UserRole

	Model        string
	InputTokens  int
	OutputTokens int

	LatencyMs       int
	TTFTMs          *int
	TokensPerSecond *float64

	Status       entity.RequestStatus
	ErrorType    string
	ErrorMessage string

	Component entity.Component
	CacheHit  bool

	TraceID string
	SpanID  string
}

// validate 校验上报载荷，返回首个发现的问题
func validate(in *Input) error {
	if strings.TrimSpace(in.RequestID) == "" {
		return apperrors.ErrValidationFailed.WithDetail("request_id is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return apperrors.ErrValidationFailed.WithDetail("user_id is required")
	}
	if !in.UserRole.Valid() {
		return apperrors.ErrValidationFailed.WithDetail("user_role: " + string(in.UserRole))
	}
	if strings.TrimSpace(in.Model) == "" {
		return apperrors.ErrValidationFailed.WithDetail("model is required")
	}
	if in.InputTokens < 0 || in.OutputTokens < 0 {
		return apperrors.ErrValidationFailed.WithDetail("token counts must be non-negative")
	}
	if in.LatencyMs < 0 {
		return apperrors.ErrValidationFailed.WithDetail("latency_ms must be non-negative")
	}
	if in.TTFTMs != nil && *in.TTFTMs < 0 {
		return apperrors.ErrValidationFailed.WithDetail("ttft_ms must be non-negative")
	}
	if !in.Status.Valid() {
		return apperrors.ErrValidationFailed.WithDetail("status: " + string(in.Status))
	}
	// Component 缺省时由服务端补 api_router
	if in.Component != "" && !in.Component.Valid() {
		return apperrors.ErrValidationFailed.WithDetail("component: " + string(in.Component))
	}
	return nil
}
