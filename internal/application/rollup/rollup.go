// Package rollup 实现按自然日的离线汇总
package rollup

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/metrics"
)

// Service 日汇总服务。
// 对指定日期整行重算并替换汇总行，重复执行结果一致。
type Service struct {
	metricRepo repository.MetricRepository
	eventRepo  repository.EventRepository
	statRepo   repository.StatRepository
	tx         repository.Transactor
}

// NewService 创建日汇总服务
func NewService(
	metricRepo repository.MetricRepository,
	eventRepo repository.EventRepository,
	statRepo repository.StatRepository,
	tx repository.Transactor,
) *Service {
	return &Service{
		metricRepo: metricRepo,
		eventRepo:  eventRepo,
		statRepo:   statRepo,
		tx:         tx,
	}
}

// Run 重算指定日期（UTC 自然日）的汇总并落库。
// 日汇总与模型汇总在同一事务内替换，要么都生效要么都不生效。
func (s *Service) Run(ctx context.Context, date time.Time) (*entity.DailyStat, error) {
	tracer := otel.Tracer("application.rollup")
	ctx, span := tracer.Start(ctx, "rollup.Service.Run")
	defer span.End()

	start := time.Now()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	records, err := s.metricRepo.ListRange(ctx, day, next, repository.MetricFilter{})
	if err != nil {
		metrics.RollupRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load metrics for rollup")
	}
	cacheSaved, err := s.eventRepo.SumCacheCostSaved(ctx, day, next)
	if err != nil {
		metrics.RollupRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load cache savings for rollup")
	}
	routingSaved, err := s.eventRepo.SumRoutingCostSavings(ctx, day, next)
	if err != nil {
		metrics.RollupRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load routing savings for rollup")
	}

	daily, modelStats := summarize(day, records, cacheSaved+routingSaved)

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.statRepo.ReplaceDailyStat(txCtx, daily); err != nil {
			return err
		}
		return s.statRepo.ReplaceModelStats(txCtx, modelStats)
	})
	if err != nil {
		metrics.RollupRunsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to persist rollup")
	}

	metrics.RollupRunsTotal.WithLabelValues("ok").Inc()
	metrics.RollupDuration.Observe(time.Since(start).Seconds())
	logger.Info(ctx, "daily rollup completed",
		"date", day.Format("2006-01-02"),
		"requests", daily.TotalRequests,
		"models", len(modelStats),
	)
	return daily, nil
}

// summarize 在内存中汇总一天的记录；空日返回全零行
func summarize(day time.Time, records []*entity.MetricRecord, costSaved float64) (*entity.DailyStat, []*entity.ModelStat) {
	daily := &entity.DailyStat{
		Date:         day,
		CostSavedUSD: round8(costSaved),
	}

	type acc struct {
		requests   int64
		errors     int64
		inTokens   int64
		outTokens  int64
		cost       float64
		latencySum float64
	}
	byModel := make(map[string]*acc)

	latencies := make([]float64, 0, len(records))
	var latencySum float64

	for _, r := range records {
		daily.TotalRequests++
		switch r.Status {
		case entity.StatusSuccess:
			daily.SuccessCount++
		case entity.StatusTimeout:
			daily.TimeoutCount++
			daily.ErrorCount++
		default:
			daily.ErrorCount++
		}

		daily.TotalInputTokens += int64(r.InputTokens)
		daily.TotalOutputTokens += int64(r.OutputTokens)
		daily.TotalCostUSD += r.CostUSD
		if r.CacheHit {
			daily.CacheHitCount++
		}

		latencies = append(latencies, float64(r.LatencyMs))
		latencySum += float64(r.LatencyMs)

		a, ok := byModel[r.Model]
		if !ok {
			a = &acc{}
			byModel[r.Model] = a
		}
		a.requests++
		if r.Status != entity.StatusSuccess {
			a.errors++
		}
		a.inTokens += int64(r.InputTokens)
		a.outTokens += int64(r.OutputTokens)
		a.cost += r.CostUSD
		a.latencySum += float64(r.LatencyMs)
	}

	if daily.TotalRequests > 0 {
		daily.AvgLatencyMs = round1(latencySum / float64(daily.TotalRequests))
		daily.CacheHitRate = round1(float64(daily.CacheHitCount) / float64(daily.TotalRequests) * 100)
		sort.Float64s(latencies)
		daily.P95LatencyMs = int(nearestRank(latencies, 0.95))
	}
	daily.TotalCostUSD = round8(daily.TotalCostUSD)

	modelStats := make([]*entity.ModelStat, 0, len(byModel))
	for model, a := range byModel {
		modelStats = append(modelStats, &entity.ModelStat{
			Date:         day,
			Model:        model,
			RequestCount: a.requests,
			ErrorCount:   a.errors,
			InputTokens:  a.inTokens,
			OutputTokens: a.outTokens,
			CostUSD:      round8(a.cost),
			AvgLatencyMs: round1(a.latencySum / float64(a.requests)),
		})
	}
	sort.Slice(modelStats, func(i, j int) bool {
		return modelStats[i].Model < modelStats[j].Model
	})
	return daily, modelStats
}

func nearestRank(sorted []float64, q float64) float64 {
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
