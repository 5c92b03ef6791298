package aggregate

import (
	"time"

	apperrors "llm-observability-api/pkg/errors"
)

// Range 聚合时间区间，左闭右开
type Range struct {
	Label  string
	From   time.Time
	To     time.Time
	Bucket time.Duration
}

var rangePresets = map[string]struct {
	span   time.Duration
	bucket time.Duration
}{
	"1h":  {time.Hour, 5 * time.Minute},
	"6h":  {6 * time.Hour, 30 * time.Minute},
	"24h": {24 * time.Hour, time.Hour},
	"7d":  {7 * 24 * time.Hour, time.Hour},
	"30d": {30 * 24 * time.Hour, 24 * time.Hour},
}

// DefaultRange 缺省区间标签
const DefaultRange = "24h"

// ParseRange 解析区间标签。
// 区间终点为当前时刻，起点回溯对应时长；空标签取缺省值。
func ParseRange(label string, now time.Time) (Range, error) {
	if label == "" {
		label = DefaultRange
	}
	preset, ok := rangePresets[label]
	if !ok {
		return Range{}, apperrors.ErrValidationFailed.WithDetail("unsupported range: " + label)
	}
	to := now.UTC()
	return Range{
		Label:  label,
		From:   to.Add(-preset.span),
		To:     to,
		Bucket: preset.bucket,
	}, nil
}
