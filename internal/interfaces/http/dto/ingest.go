package dto

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"llm-observability-api/internal/application/ingest"
	"llm-observability-api/internal/domain/entity"
)

// IngestMetricRequest 指标上报请求。
// 不含成本字段，调用方上报的成本一律忽略。
type IngestMetricRequest struct {
	RequestID string     `json:"request_id" binding:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	UserID   string `json:"user_id" binding:"required"`
	UserRole string `json:"user_role" binding:"required"`

	Model        string `json:"model" binding:"required"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`

	LatencyMs       int      `json:"latency_ms"`
	TTFTMs          *int     `json:"ttft_ms,omitempty"`
	TokensPerSecond *float64 `json:"tokens_per_second,omitempty"`

	Status       string `json:"status" binding:"required"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Component string `json:"component,omitempty"`
	CacheHit  bool   `json:"cache_hit"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ToInput 转换为采集服务输入
func (r *IngestMetricRequest) ToInput() *ingest.Input {
	in := &ingest.Input{
		RequestID:       r.RequestID,
		UserID:          r.UserID,
		UserRole:        entity.UserRole(r.UserRole),
		Model:           r.Model,
		InputTokens:     r.InputTokens,
		OutputTokens:    r.OutputTokens,
		LatencyMs:       r.LatencyMs,
		TTFTMs:          r.TTFTMs,
		TokensPerSecond: r.TokensPerSecond,
		Status:          entity.RequestStatus(r.Status),
		ErrorType:       r.ErrorType,
		ErrorMessage:    r.ErrorMessage,
		Component:       entity.Component(r.Component),
		CacheHit:        r.CacheHit,
		TraceID:         r.TraceID,
		SpanID:          r.SpanID,
	}
	if r.Timestamp != nil {
		in.Timestamp = *r.Timestamp
	}
	return in
}

// IngestAcceptedResponse 指标采纳响应
type IngestAcceptedResponse struct {
	RequestID string  `json:"request_id"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
}

// SecurityEventRequest 安全事件上报请求
type SecurityEventRequest struct {
	RequestID   string          `json:"request_id" binding:"required"`
	Timestamp   *time.Time      `json:"timestamp,omitempty"`
	Layer       string          `json:"layer" binding:"required"`
	Action      string          `json:"action" binding:"required"`
	UserID      string          `json:"user_id"`
	UserRole    string          `json:"user_role,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Blocked     bool            `json:"blocked"`
	ThreatLevel string          `json:"threat_level,omitempty"`
}

// ToInput 转换为采集服务输入
func (r *SecurityEventRequest) ToInput() *ingest.SecurityEventInput {
	in := &ingest.SecurityEventInput{
		RequestID:   r.RequestID,
		Layer:       entity.SecurityLayer(r.Layer),
		Action:      r.Action,
		UserID:      r.UserID,
		UserRole:    entity.UserRole(r.UserRole),
		Details:     r.Details,
		Blocked:     r.Blocked,
		ThreatLevel: r.ThreatLevel,
	}
	if r.Timestamp != nil {
		in.Timestamp = *r.Timestamp
	}
	return in
}

// RoutingDecisionRequest 路由决策上报请求
type RoutingDecisionRequest struct {
	RequestID         string     `json:"request_id" binding:"required"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
	UserID            string     `json:"user_id"`
	SelectedModel     string     `json:"selected_model" binding:"required"`
	AlternativeModels []string   `json:"alternative_models,omitempty"`
	SelectionReason   string     `json:"selection_reason,omitempty"`
	EstimatedCost     float64    `json:"estimated_cost"`
	ActualCost        float64    `json:"actual_cost"`
	CostSavings       float64    `json:"cost_savings"`
}

// ToEntity 转换为领域实体
func (r *RoutingDecisionRequest) ToEntity() *entity.RoutingDecision {
	d := &entity.RoutingDecision{
		RequestID:         r.RequestID,
		UserID:            r.UserID,
		SelectedModel:     r.SelectedModel,
		AlternativeModels: pq.StringArray(r.AlternativeModels),
		SelectionReason:   r.SelectionReason,
		EstimatedCost:     r.EstimatedCost,
		ActualCost:        r.ActualCost,
		CostSavings:       r.CostSavings,
	}
	if r.Timestamp != nil {
		d.Timestamp = *r.Timestamp
	}
	return d
}

// CacheStatRequest 语义缓存事件上报请求
type CacheStatRequest struct {
	RequestID       string     `json:"request_id" binding:"required"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	UserID          string     `json:"user_id"`
	CacheKey        string     `json:"cache_key,omitempty"`
	Hit             bool       `json:"hit"`
	SimilarityScore *float64   `json:"similarity_score,omitempty"`
	TokensSaved     int        `json:"tokens_saved"`
	CostSaved       float64    `json:"cost_saved"`
}

// ToEntity 转换为领域实体
func (r *CacheStatRequest) ToEntity() *entity.CacheStat {
	s := &entity.CacheStat{
		RequestID:       r.RequestID,
		UserID:          r.UserID,
		CacheKey:        r.CacheKey,
		Hit:             r.Hit,
		SimilarityScore: r.SimilarityScore,
		TokensSaved:     r.TokensSaved,
		CostSaved:       r.CostSaved,
	}
	if r.Timestamp != nil {
		s.Timestamp = *r.Timestamp
	}
	return s
}

// PIIEventRequest PII 事件上报请求
type PIIEventRequest struct {
	RequestID       string     `json:"request_id" binding:"required"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	UserID          string     `json:"user_id"`
	PIITypes        []string   `json:"pii_types,omitempty"`
	MaskedCount     int        `json:"masked_count"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
}

// ToEntity 转换为领域实体
func (r *PIIEventRequest) ToEntity() *entity.PIIEvent {
	e := &entity.PIIEvent{
		RequestID:       r.RequestID,
		UserID:          r.UserID,
		PIITypes:        pq.StringArray(r.PIITypes),
		MaskedCount:     r.MaskedCount,
		ConfidenceScore: r.ConfidenceScore,
	}
	if r.Timestamp != nil {
		e.Timestamp = *r.Timestamp
	}
	return e
}
