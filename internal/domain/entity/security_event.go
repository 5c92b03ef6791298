package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// SecurityLayer 安全流水线层
type SecurityLayer string

const (
	LayerLlamaGuard  SecurityLayer = "llama_guard"
	LayerRBAC        SecurityLayer = "rbac"
	LayerNemo        SecurityLayer = "nemo_guardrails"
	LayerPIIFirewall SecurityLayer = "pii_firewall"
)

// Valid 检查安全层是否合法
func (l SecurityLayer) Valid() bool {
	switch l {
	case LayerLlamaGuard, LayerRBAC, LayerNemo, LayerPIIFirewall:
		return true
	}
	return false
}

// SecurityEvent 安全流水线的结果事件（append-only）。
// request_id 为弱引用：对应的 MetricRecord 可能尚未落库，查询时再关联。
type SecurityEvent struct {
	ID        int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time     `json:"timestamp" gorm:"index;not null"`
	RequestID string        `json:"request_id" gorm:"type:varchar(64);index;not null"`
	Layer     SecurityLayer `json:"layer" gorm:"type:varchar(32);index;not null"`
	Action    string        `json:"action" gorm:"type:varchar(64);not null"`
	UserID    string        `json:"user_id" gorm:"type:varchar(64);not null"`
	UserRole  UserRole      `json:"user_role" gorm:"type:varchar(32);not null"`

	// Details 按 Layer 固定字段集的变体载荷，见 *Detail 类型
	Details json.RawMessage `json:"details,omitempty" gorm:"type:jsonb"`

	Blocked     bool      `json:"blocked" gorm:"not null;default:false"`
	ThreatLevel string    `json:"threat_level,omitempty" gorm:"type:varchar(16)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SecurityEvent) TableName() string {
	return "security_events"
}

// LlamaGuardDetail 守卫模型判定详情
type LlamaGuardDetail struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// RBACDetail 权限判定详情
type RBACDetail struct {
	Resource string `json:"resource"`
	PolicyID string `json:"policy_id"`
	Allowed  bool   `json:"allowed"`
}

// GuardrailDetail 护栏校验详情
type GuardrailDetail struct {
	RailID    string `json:"rail_id"`
	Violation string `json:"violation,omitempty"`
}

// PIIFirewallDetail PII 防火墙详情
type PIIFirewallDetail struct {
	PIITypes    []string `json:"pii_types"`
	MaskedCount int      `json:"masked_count"`
}

// EncodeDetails 按层编码变体载荷并校验类型匹配
func (e *SecurityEvent) EncodeDetails(detail any) error {
	switch e.Layer {
	case LayerLlamaGuard:
		if _, ok := detail.(LlamaGuardDetail); !ok {
			return fmt.Errorf("layer %s expects LlamaGuardDetail", e.Layer)
		}
	case LayerRBAC:
		if _, ok := detail.(RBACDetail); !ok {
			return fmt.Errorf("layer %s expects RBACDetail", e.Layer)
		}
	case LayerNemo:
		if _, ok := detail.(GuardrailDetail); !ok {
			return fmt.Errorf("layer %s expects GuardrailDetail", e.Layer)
		}
	case LayerPIIFirewall:
		if _, ok := detail.(PIIFirewallDetail); !ok {
			return fmt.Errorf("layer %s expects PIIFirewallDetail", e.Layer)
		}
	default:
		return fmt.Errorf("unknown security layer: %s", e.Layer)
	}

	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode security details: %w", err)
	}
	e.Details = data
	return nil
}

// DecodeDetails 按层解码变体载荷
func (e *SecurityEvent) DecodeDetails() (any, error) {
	if len(e.Details) == 0 {
		return nil, nil
	}
	switch e.Layer {
	case LayerLlamaGuard:
		var d LlamaGuardDetail
		if err := json.Unmarshal(e.Details, &d); err != nil {
			return nil, err
		}
		return d, nil
	case LayerRBAC:
		var d RBACDetail
		if err := json.Unmarshal(e.Details, &d); err != nil {
			return nil, err
		}
		return d, nil
	case LayerNemo:
		var d GuardrailDetail
		if err := json.Unmarshal(e.Details, &d); err != nil {
			return nil, err
		}
		return d, nil
	case LayerPIIFirewall:
		var d PIIFirewallDetail
		if err := json.Unmarshal(e.Details, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown security layer: %s", e.Layer)
	}
}
