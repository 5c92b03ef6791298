package aggregate

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/metrics"
)

// Engine 聚合引擎。
// 每次调用在查询时间预算内并发拉取原始数据，在内存中完成汇总。
type Engine struct {
	metricRepo  repository.MetricRepository
	eventRepo   repository.EventRepository
	timeout     time.Duration
	recentLimit int
	now         func() time.Time
}

// NewEngine 创建聚合引擎
func NewEngine(metricRepo repository.MetricRepository, eventRepo repository.EventRepository, timeout time.Duration, recentLimit int) *Engine {
	return &Engine{
		metricRepo:  metricRepo,
		eventRepo:   eventRepo,
		timeout:     timeout,
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

// Dashboard 聚合出完整看板载荷。
// 超过时间预算返回 AggregationTimeout，已算出的部分结果不返回。
func (e *Engine) Dashboard(ctx context.Context, rng Range, filter repository.MetricFilter) (*Dashboard, error) {
	tracer := otel.Tracer("application.aggregate")
	ctx, span := tracer.Start(ctx, "aggregate.Engine.Dashboard")
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		records      []*entity.MetricRecord
		recent       []*entity.MetricRecord
		models       []string
		roles        []string
		cacheSaved   float64
		routingSaved float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = e.metricRepo.ListRange(gctx, rng.From, rng.To, filter)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = e.metricRepo.ListRecent(gctx, repository.RecentQuery{
			Limit:  e.recentLimit,
			Model:  filter.Model,
			Status: filter.Status,
		})
		return err
	})
	g.Go(func() error {
		var err error
		models, err = e.metricRepo.DistinctModels(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = e.metricRepo.DistinctUserRoles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cacheSaved, err = e.eventRepo.SumCacheCostSaved(gctx, rng.From, rng.To)
		return err
	})
	g.Go(func() error {
		var err error
		routingSaved, err = e.eventRepo.SumRoutingCostSavings(gctx, rng.From, rng.To)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrAggregationTimeout.WithError(err)
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "metric store query failed")
	}

	d := &Dashboard{
		Range:          rng.Label,
		From:           rng.From,
		To:             rng.To,
		GeneratedAt:    e.now().UTC(),
		KPIs:           computeKPIs(records, cacheSaved, routingSaved),
		CostByModel:    computeCostByModel(records),
		Trend:          computeTrend(records, rng),
		Models:         models,
		UserRoles:      roles,
		RecentRequests: recent,
	}

	metrics.AggregationDuration.WithLabelValues(rng.Label).Observe(time.Since(start).Seconds())
	return d, nil
}
