// Package pricing 实现模型定价与成本计算
package pricing

import (
	"math"
	"sort"

	"llm-observability-api/internal/config"
	apperrors "llm-observability-api/pkg/errors"
)

// ModelPrice 模型单价，单位为美元每百万 token
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Table 定价表，构造后只读
type Table struct {
	prices map[string]ModelPrice
}

// NewTable 从配置构建定价表
func NewTable(cfg *config.PricingConfig) *Table {
	prices := make(map[string]ModelPrice, len(cfg.Models))
	for model, p := range cfg.Models {
		prices[model] = ModelPrice{
			InputPerMTok:  p.InputPerMTok,
			OutputPerMTok: p.OutputPerMTok,
		}
	}
	return &Table{prices: prices}
}

// Lookup 查询模型单价
func (t *Table) Lookup(model string) (ModelPrice, bool) {
	p, ok := t.prices[model]
	return p, ok
}

// Models 返回定价表内全部模型名，按字典序排列
func (t *Table) Models() []string {
	names := make([]string, 0, len(t.prices))
	for name := range t.prices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cost 按定价表计算一次请求的成本，保留 8 位小数。
// 成本只由服务端计算，未知模型返回 UnknownModel 错误。
func (t *Table) Cost(model string, inputTokens, outputTokens int) (float64, error) {
	p, ok := t.prices[model]
	if !ok {
		return 0, apperrors.ErrUnknownModel.WithDetail("model: " + model)
	}
	cost := float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
	return round8(cost), nil
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
