package entity

import "time"

// RateLimitWindow 固定窗口计数行。
// 键为 (subject, endpoint, window_start)，窗口关闭后可自然回收。
type RateLimitWindow struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Subject     string    `json:"subject" gorm:"type:varchar(64);uniqueIndex:idx_rate_limits_window;not null"`
	Endpoint    string    `json:"endpoint" gorm:"type:varchar(128);uniqueIndex:idx_rate_limits_window;not null"`
	WindowStart time.Time `json:"window_start" gorm:"uniqueIndex:idx_rate_limits_window;not null"`
	Count       int64     `json:"count" gorm:"not null;default:0"`
	Exceeded    bool      `json:"exceeded" gorm:"not null;default:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (RateLimitWindow) TableName() string {
	return "rate_limits"
}
