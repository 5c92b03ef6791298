package pricing

import (
	"testing"

	"llm-observability-api/internal/config"
	apperrors "llm-observability-api/pkg/errors"
)

func testTable() *Table {
	return NewTable(&config.PricingConfig{
		Models: map[string]config.ModelPrice{
			"llama-3.1-8b-instant":    {InputPerMTok: 0.05, OutputPerMTok: 0.08},
			"llama-3.1-70b-versatile": {InputPerMTok: 0.59, OutputPerMTok: 0.79},
			"mixtral-8x7b-32768":      {InputPerMTok: 0.24, OutputPerMTok: 0.24},
		},
	})
}

func TestCost(t *testing.T) {
	table := testTable()

	tests := []struct {
		name         string
		model        string
		inputTokens  int
		outputTokens int
		want         float64
	}{
		{
			name:         "小模型基础计费",
			model:        "llama-3.1-8b-instant",
			inputTokens:  1000,
			outputTokens: 500,
			want:         0.00009,
		},
		{
			name:         "大模型不同输入输出单价",
			model:        "llama-3.1-70b-versatile",
			inputTokens:  10000,
			outputTokens: 2000,
			want:         0.00748,
		},
		{
			name:         "零 token 成本为零",
			model:        "mixtral-8x7b-32768",
			inputTokens:  0,
			outputTokens: 0,
			want:         0,
		},
		{
			name:         "百万 token 对齐单价",
			model:        "llama-3.1-8b-instant",
			inputTokens:  1000000,
			outputTokens: 1000000,
			want:         0.13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Cost(tt.model, tt.inputTokens, tt.outputTokens)
			if err != nil {
				t.Fatalf("Cost() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCostUnknownModel(t *testing.T) {
	table := testTable()

	_, err := table.Cost("gpt-oss-120b", 100, 100)
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	if !apperrors.IsCode(err, apperrors.CodeUnknownModel) {
		t.Errorf("error code = %v, want %v", err, apperrors.CodeUnknownModel)
	}
}

func TestCostDeterministic(t *testing.T) {
	table := testTable()

	first, err := table.Cost("llama-3.1-70b-versatile", 12345, 6789)
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := table.Cost("llama-3.1-70b-versatile", 12345, 6789)
		if err != nil {
			t.Fatalf("Cost() error = %v", err)
		}
		if got != first {
			t.Fatalf("Cost() not deterministic: %v != %v", got, first)
		}
	}
}
