package entity

import (
	"time"

	"github.com/lib/pq"
)

// RoutingDecision 模型路由决策记录（append-only，request_id 为弱引用）
type RoutingDecision struct {
	ID                int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp         time.Time      `json:"timestamp" gorm:"index;not null"`
	RequestID         string         `json:"request_id" gorm:"type:varchar(64);index;not null"`
	UserID            string         `json:"user_id" gorm:"type:varchar(64);not null"`
	SelectedModel     string         `json:"selected_model" gorm:"type:varchar(64);not null"`
	AlternativeModels pq.StringArray `json:"alternative_models,omitempty" gorm:"type:text[]"`
	SelectionReason   string         `json:"selection_reason,omitempty" gorm:"type:text"`
	EstimatedCost     float64        `json:"estimated_cost" gorm:"type:numeric(18,8);not null;default:0"`
	ActualCost        float64        `json:"actual_cost" gorm:"type:numeric(18,8);not null;default:0"`
	CostSavings       float64        `json:"cost_savings" gorm:"type:numeric(18,8);not null;default:0"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (RoutingDecision) TableName() string {
	return "routing_decisions"
}

// CacheStat 语义缓存命中统计（append-only，request_id 为弱引用）
type CacheStat struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp       time.Time `json:"timestamp" gorm:"index;not null"`
	RequestID       string    `json:"request_id" gorm:"type:varchar(64);index;not null"`
	UserID          string    `json:"user_id" gorm:"type:varchar(64);not null"`
	CacheKey        string    `json:"cache_key,omitempty" gorm:"type:varchar(128)"`
	Hit             bool      `json:"hit" gorm:"not null;default:false"`
	SimilarityScore *float64  `json:"similarity_score,omitempty"`
	TokensSaved     int       `json:"tokens_saved" gorm:"not null;default:0"`
	CostSaved       float64   `json:"cost_saved" gorm:"type:numeric(18,8);not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CacheStat) TableName() string {
	return "cache_stats"
}

// PIIEvent PII 检测事件（append-only，request_id 为弱引用）
type PIIEvent struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp       time.Time      `json:"timestamp" gorm:"index;not null"`
	RequestID       string         `json:"request_id" gorm:"type:varchar(64);index;not null"`
	UserID          string         `json:"user_id" gorm:"type:varchar(64);not null"`
	PIITypes        pq.StringArray `json:"pii_types" gorm:"type:text[]"`
	MaskedCount     int            `json:"masked_count" gorm:"not null;default:0"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PIIEvent) TableName() string {
	return "pii_events"
}
