package aggregate

import (
	"testing"
	"time"

	"llm-observability-api/internal/domain/entity"
)

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		q      float64
		want   float64
	}{
		{
			name:   "十个等距值的 p95 取最大值",
			sorted: []float64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000},
			q:      0.95,
			want:   1000,
		},
		{
			name:   "二十个值的 p95 取第 19 个",
			sorted: seq(1, 20),
			q:      0.95,
			want:   19,
		},
		{
			name:   "单个值",
			sorted: []float64{42},
			q:      0.95,
			want:   42,
		},
		{
			name:   "p50 取中位偏上",
			sorted: []float64{10, 20, 30, 40},
			q:      0.5,
			want:   20,
		},
		{
			name:   "空输入",
			sorted: nil,
			q:      0.95,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.q); got != tt.want {
				t.Errorf("percentile(%v, %v) = %v, want %v", tt.sorted, tt.q, got, tt.want)
			}
		})
	}
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}

func rec(ts time.Time, model string, status entity.RequestStatus, latencyMs int, cost float64, tokens int) *entity.MetricRecord {
	return &entity.MetricRecord{
		Timestamp:    ts,
		Model:        model,
		Status:       status,
		LatencyMs:    latencyMs,
		CostUSD:      cost,
		InputTokens:  tokens / 2,
		OutputTokens: tokens - tokens/2,
	}
}

func TestComputeKPIs(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	records := []*entity.MetricRecord{
		rec(ts, "m1", entity.StatusSuccess, 100, 0.01, 1000),
		rec(ts, "m1", entity.StatusSuccess, 200, 0.005, 500),
		rec(ts, "m2", entity.StatusError, 500, 0.015, 2000),
	}

	k := computeKPIs(records, 0.002, 0.001)

	if k.TotalRequests != 3 || k.SuccessCount != 2 || k.ErrorCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", k.TotalRequests, k.SuccessCount, k.ErrorCount)
	}
	if k.SuccessRate != 66.7 {
		t.Errorf("SuccessRate = %v, want 66.7", k.SuccessRate)
	}
	if k.AvgLatencyMs != 266.7 {
		t.Errorf("AvgLatencyMs = %v, want 266.7", k.AvgLatencyMs)
	}
	if k.P95LatencyMs != 500 {
		t.Errorf("P95LatencyMs = %v, want 500", k.P95LatencyMs)
	}
	if k.TotalCostUSD != 0.03 {
		t.Errorf("TotalCostUSD = %v, want 0.03", k.TotalCostUSD)
	}
	if k.CostSavedUSD != 0.003 {
		t.Errorf("CostSavedUSD = %v, want 0.003", k.CostSavedUSD)
	}
	if k.TotalTokens != 3500 {
		t.Errorf("TotalTokens = %v, want 3500", k.TotalTokens)
	}
}

func TestComputeKPIsEmpty(t *testing.T) {
	k := computeKPIs(nil, 0, 0)
	if k.TotalRequests != 0 || k.SuccessRate != 0 || k.P95LatencyMs != 0 || k.TotalCostUSD != 0 {
		t.Errorf("empty range KPIs not zero: %+v", k)
	}
}

func TestComputeCostByModel(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	records := []*entity.MetricRecord{
		rec(ts, "llama-3.1-70b-versatile", entity.StatusSuccess, 300, 0.06, 1000),
		rec(ts, "llama-3.1-8b-instant", entity.StatusSuccess, 100, 0.03, 1000),
		rec(ts, "mixtral-8x7b-32768", entity.StatusSuccess, 200, 0.01, 1000),
	}

	out := computeCostByModel(records)
	if len(out) != 3 {
		t.Fatalf("models = %d, want 3", len(out))
	}
	if out[0].Model != "llama-3.1-70b-versatile" {
		t.Errorf("top model = %s, want biggest cost first", out[0].Model)
	}

	var sum float64
	for _, b := range out {
		sum += b.CostPercent
	}
	if round1(sum) != 100 {
		t.Errorf("percent sum = %v, want 100", sum)
	}
}

func TestComputeCostByModelPercentResidual(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	// 1/3 各占 33.3，残差 0.1 并入最大份额
	records := []*entity.MetricRecord{
		rec(ts, "a", entity.StatusSuccess, 100, 0.01, 100),
		rec(ts, "b", entity.StatusSuccess, 100, 0.01, 100),
		rec(ts, "c", entity.StatusSuccess, 100, 0.01, 100),
	}

	out := computeCostByModel(records)
	var sum float64
	for _, b := range out {
		sum += b.CostPercent
	}
	if round1(sum) != 100 {
		t.Errorf("percent sum = %v, want exactly 100", sum)
	}
	if out[0].CostPercent != 33.4 {
		t.Errorf("top percent = %v, want 33.4 after residual", out[0].CostPercent)
	}
}

func TestComputeTrendBuckets(t *testing.T) {
	from := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	rng := Range{
		Label:  "24h",
		From:   from,
		To:     from.Add(24 * time.Hour),
		Bucket: time.Hour,
	}

	records := []*entity.MetricRecord{
		rec(from.Add(30*time.Minute), "m1", entity.StatusSuccess, 100, 0.01, 100),
		rec(from.Add(45*time.Minute), "m1", entity.StatusError, 300, 0.01, 100),
		rec(from.Add(5*time.Hour+10*time.Minute), "m1", entity.StatusSuccess, 200, 0.01, 100),
	}

	out := computeTrend(records, rng)
	if len(out) != 24 {
		t.Fatalf("buckets = %d, want 24 (empty buckets included)", len(out))
	}
	if !out[0].BucketStart.Equal(from) {
		t.Errorf("first bucket = %v, want aligned to %v", out[0].BucketStart, from)
	}
	if out[0].Requests != 2 || out[0].ErrorCount != 1 {
		t.Errorf("bucket 0 = %d req / %d err, want 2/1", out[0].Requests, out[0].ErrorCount)
	}
	if out[0].ErrorRate != 50 {
		t.Errorf("bucket 0 ErrorRate = %v, want 50", out[0].ErrorRate)
	}
	if out[5].Requests != 1 {
		t.Errorf("bucket 5 requests = %d, want 1", out[5].Requests)
	}
	if out[3].Requests != 0 || out[3].AvgLatencyMs != 0 {
		t.Errorf("empty bucket not zero: %+v", out[3])
	}
}
