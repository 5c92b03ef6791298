// Package entity 定义领域实体
package entity

import "time"

// RequestStatus 请求状态
type RequestStatus string

const (
	StatusSuccess     RequestStatus = "success"
	StatusError       RequestStatus = "error"
	StatusTimeout     RequestStatus = "timeout"
	StatusRateLimited RequestStatus = "rate_limited"
)

// Valid 检查状态是否合法
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusTimeout, StatusRateLimited:
		return true
	}
	return false
}

// UserRole 用户角色
type UserRole string

const (
	RoleEmployee UserRole = "employee"
	RoleManager  UserRole = "manager"
	RoleAdmin    UserRole = "admin"
)

// Valid 检查角色是否合法
func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Component 指标来源子系统
type Component string

const (
	ComponentAPIRouter     Component = "api_router"
	ComponentSemanticCache Component = "semantic_cache"
	ComponentAIRouter      Component = "ai_router"
	ComponentLlamaGuard    Component = "llama_guard"
	ComponentRBAC          Component = "rbac"
	ComponentNemo          Component = "nemo_guardrails"
	ComponentPIIFirewall   Component = "pii_firewall"
	ComponentLLMClient     Component = "groq_client"
)

// Valid 检查来源子系统是否合法
func (c Component) Valid() bool {
	switch c {
	case ComponentAPIRouter, ComponentSemanticCache, ComponentAIRouter,
		ComponentLlamaGuard, ComponentRBAC, ComponentNemo,
		ComponentPIIFirewall, ComponentLLMClient:
		return true
	}
	return false
}

// MetricRecord 单次 LLM 调用的遥测记录。
// 调用完成时创建一次，之后不可变；本引擎不负责删除（保留策略在外部）。
type MetricRecord struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID string    `json:"request_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`

	UserID   string   `json:"user_id" gorm:"type:varchar(64);index;not null"`
	UserRole UserRole `json:"user_role" gorm:"type:varchar(32);index;not null"`

	Model        string `json:"model" gorm:"type:varchar(64);index;not null"`
	InputTokens  int    `json:"input_tokens" gorm:"not null;default:0"`
	OutputTokens int    `json:"output_tokens" gorm:"not null;default:0"`

	LatencyMs       int      `json:"latency_ms" gorm:"not null;default:0"`
	TTFTMs          *int     `json:"ttft_ms,omitempty"`
	TokensPerSecond *float64 `json:"tokens_per_second,omitempty"`

	// CostUSD 由定价表推导，精度固定 8 位小数，不接受调用方上报
	CostUSD float64 `json:"cost_usd" gorm:"type:numeric(18,8);not null;default:0"`

	Status       RequestStatus `json:"status" gorm:"type:varchar(16);index;not null"`
	ErrorType    string        `json:"error_type,omitempty" gorm:"type:varchar(64)"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"type:text"`

	Component Component `json:"component" gorm:"type:varchar(32);not null"`
	CacheHit  bool      `json:"cache_hit" gorm:"not null;default:false"`

	TraceID string `json:"trace_id,omitempty" gorm:"type:varchar(64)"`
	SpanID  string `json:"span_id,omitempty" gorm:"type:varchar(64)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (MetricRecord) TableName() string {
	return "llm_metrics"
}

// TotalTokens 派生值，恒等于 input + output，不单独存储
func (m *MetricRecord) TotalTokens() int {
	return m.InputTokens + m.OutputTokens
}
