package aggregate

import (
	"math"
	"sort"

	"llm-observability-api/internal/domain/entity"
)

// percentile 最近秩法分位数：取升序第 ceil(q*n) 个值（1-based）。
// 不插值，返回值必然是输入中实际出现过的值；空输入返回 0。
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(q * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// computeKPIs 汇总区间核心指标；记录为空时全部为零值
func computeKPIs(records []*entity.MetricRecord, cacheSaved, routingSaved float64) KPIs {
	k := KPIs{}
	if len(records) == 0 {
		return k
	}

	latencies := make([]float64, 0, len(records))
	var latencySum float64
	var tpsSum float64
	var tpsCount int64

	for _, r := range records {
		k.TotalRequests++
		switch r.Status {
		case entity.StatusSuccess:
			k.SuccessCount++
		default:
			k.ErrorCount++
		}

		latencies = append(latencies, float64(r.LatencyMs))
		latencySum += float64(r.LatencyMs)

		k.TotalInputTokens += int64(r.InputTokens)
		k.TotalOutputTokens += int64(r.OutputTokens)
		k.TotalCostUSD += r.CostUSD

		if r.CacheHit {
			k.CacheHitCount++
		}
		if r.TokensPerSecond != nil {
			tpsSum += *r.TokensPerSecond
			tpsCount++
		}
	}

	k.TotalTokens = k.TotalInputTokens + k.TotalOutputTokens
	k.SuccessRate = round1(float64(k.SuccessCount) / float64(k.TotalRequests) * 100)
	k.ErrorRate = round1(float64(k.ErrorCount) / float64(k.TotalRequests) * 100)
	k.AvgLatencyMs = round1(latencySum / float64(k.TotalRequests))
	k.CacheHitRate = round1(float64(k.CacheHitCount) / float64(k.TotalRequests) * 100)
	k.TotalCostUSD = round8(k.TotalCostUSD)
	k.CostSavedUSD = round8(cacheSaved + routingSaved)
	if tpsCount > 0 {
		k.AvgTokensPerSecond = round1(tpsSum / float64(tpsCount))
	}

	sort.Float64s(latencies)
	k.P95LatencyMs = percentile(latencies, 0.95)
	return k
}

// computeCostByModel 按模型拆分成本，按成本降序排列。
// 百分比保留 1 位小数，残差并入最大份额，保证合计恰为 100。
func computeCostByModel(records []*entity.MetricRecord) []ModelBreakdown {
	if len(records) == 0 {
		return []ModelBreakdown{}
	}

	type acc struct {
		requests   int64
		tokens     int64
		cost       float64
		latencySum float64
	}
	byModel := make(map[string]*acc)
	var totalCost float64

	for _, r := range records {
		a, ok := byModel[r.Model]
		if !ok {
			a = &acc{}
			byModel[r.Model] = a
		}
		a.requests++
		a.tokens += int64(r.TotalTokens())
		a.cost += r.CostUSD
		a.latencySum += float64(r.LatencyMs)
		totalCost += r.CostUSD
	}

	out := make([]ModelBreakdown, 0, len(byModel))
	for model, a := range byModel {
		b := ModelBreakdown{
			Model:        model,
			Requests:     a.requests,
			TotalTokens:  a.tokens,
			CostUSD:      round8(a.cost),
			AvgLatencyMs: round1(a.latencySum / float64(a.requests)),
		}
		if totalCost > 0 {
			b.CostPercent = round1(a.cost / totalCost * 100)
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CostUSD != out[j].CostUSD {
			return out[i].CostUSD > out[j].CostUSD
		}
		return out[i].Model < out[j].Model
	})

	if totalCost > 0 {
		var sum float64
		for _, b := range out {
			sum += b.CostPercent
		}
		if residual := round1(100 - sum); residual != 0 {
			out[0].CostPercent = round1(out[0].CostPercent + residual)
		}
	}
	return out
}

// computeTrend 把记录分到对齐的时间桶。
// 区间内每个桶都会出现，无数据的桶为零值。
func computeTrend(records []*entity.MetricRecord, rng Range) []TrendPoint {
	start := rng.From.Truncate(rng.Bucket)
	buckets := make(map[int64][]*entity.MetricRecord)

	for _, r := range records {
		b := r.Timestamp.Truncate(rng.Bucket)
		buckets[b.Unix()] = append(buckets[b.Unix()], r)
	}

	var out []TrendPoint
	for t := start; t.Before(rng.To); t = t.Add(rng.Bucket) {
		p := TrendPoint{BucketStart: t}
		group := buckets[t.Unix()]
		if len(group) > 0 {
			latencies := make([]float64, 0, len(group))
			var latencySum, tpsSum float64
			var tpsCount int64
			for _, r := range group {
				p.Requests++
				if r.Status != entity.StatusSuccess {
					p.ErrorCount++
				}
				latencies = append(latencies, float64(r.LatencyMs))
				latencySum += float64(r.LatencyMs)
				p.TotalTokens += int64(r.TotalTokens())
				p.CostUSD += r.CostUSD
				if r.TokensPerSecond != nil {
					tpsSum += *r.TokensPerSecond
					tpsCount++
				}
			}
			p.ErrorRate = round1(float64(p.ErrorCount) / float64(p.Requests) * 100)
			p.AvgLatencyMs = round1(latencySum / float64(p.Requests))
			p.CostUSD = round8(p.CostUSD)
			if tpsCount > 0 {
				p.AvgTokensPerSecond = round1(tpsSum / float64(tpsCount))
			}
			sort.Float64s(latencies)
			p.P95LatencyMs = percentile(latencies, 0.95)
		}
		out = append(out, p)
	}
	return out
}
