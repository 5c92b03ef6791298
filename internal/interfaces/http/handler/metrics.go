package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"llm-observability-api/internal/application/aggregate"
	"llm-observability-api/internal/application/dashboard"
	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	"llm-observability-api/internal/infrastructure/persistence/redis"
	"llm-observability-api/internal/interfaces/http/dto"
)

// RealtimeSource 当日实时计数来源，可为 nil
type RealtimeSource interface {
	Today(ctx context.Context, day time.Time) (*redis.Snapshot, error)
}

// MetricsHandler 看板查询处理器
type MetricsHandler struct {
	cache      *dashboard.Cache
	metricRepo repository.MetricRepository
	realtime   RealtimeSource

	now func() time.Time
}

// NewMetricsHandler 创建看板处理器
func NewMetricsHandler(cache *dashboard.Cache, metricRepo repository.MetricRepository, realtime RealtimeSource) *MetricsHandler {
	return &MetricsHandler{
		cache:      cache,
		metricRepo: metricRepo,
		realtime:   realtime,
		now:        time.Now,
	}
}

// dashboard 解析查询参数并取回（可能命中缓存的）完整看板
func (h *MetricsHandler) dashboard(c *gin.Context) (*aggregate.Dashboard, bool) {
	var query dto.MetricsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, err.Error())
		return nil, false
	}

	rng, err := aggregate.ParseRange(query.Range, h.now().UTC())
	if err != nil {
		dto.FromAppError(c, err)
		return nil, false
	}

	d, err := h.cache.Get(c.Request.Context(), rng, query.Filter())
	if err != nil {
		dto.FromAppError(c, err)
		return nil, false
	}
	return d, true
}

// Dashboard 完整看板载荷
// @Summary 查询看板
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[aggregate.Dashboard]
// @Router /v1/metrics/dashboard [get]
func (h *MetricsHandler) Dashboard(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	dto.Success(c, d)
}

// KPIs 区间核心指标
// @Summary 查询 KPI
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[aggregate.KPIs]
// @Router /v1/metrics/kpis [get]
func (h *MetricsHandler) KPIs(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	dto.Success(c, d.KPIs)
}

// CostByModel 按模型的成本拆分
// @Summary 查询模型成本拆分
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]aggregate.ModelBreakdown]
// @Router /v1/metrics/cost-by-model [get]
func (h *MetricsHandler) CostByModel(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	dto.Success(c, d.CostByModel)
}

// LatencyTrend 延迟趋势
// @Summary 查询延迟趋势
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]dto.LatencyPoint]
// @Router /v1/metrics/latency-trend [get]
func (h *MetricsHandler) LatencyTrend(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	points := make([]dto.LatencyPoint, 0, len(d.Trend))
	for _, p := range d.Trend {
		points = append(points, dto.LatencyPoint{
			BucketStart: p.BucketStart,
			AvgMs:       p.AvgLatencyMs,
			P95Ms:       p.P95LatencyMs,
		})
	}
	dto.Success(c, points)
}

// RequestVolume 请求量趋势
// @Summary 查询请求量趋势
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]dto.VolumePoint]
// @Router /v1/metrics/request-volume [get]
func (h *MetricsHandler) RequestVolume(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	points := make([]dto.VolumePoint, 0, len(d.Trend))
	for _, p := range d.Trend {
		points = append(points, dto.VolumePoint{
			BucketStart: p.BucketStart,
			Requests:    p.Requests,
			ErrorCount:  p.ErrorCount,
		})
	}
	dto.Success(c, points)
}

// ErrorRate 错误率趋势
// @Summary 查询错误率趋势
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ErrorRatePoint]
// @Router /v1/metrics/error-rate [get]
func (h *MetricsHandler) ErrorRate(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	points := make([]dto.ErrorRatePoint, 0, len(d.Trend))
	for _, p := range d.Trend {
		points = append(points, dto.ErrorRatePoint{
			BucketStart: p.BucketStart,
			ErrorRate:   p.ErrorRate,
		})
	}
	dto.Success(c, points)
}

// TokensPerSecond 吞吐趋势
// @Summary 查询吞吐趋势
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ThroughputPoint]
// @Router /v1/metrics/tokens-per-second [get]
func (h *MetricsHandler) TokensPerSecond(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	points := make([]dto.ThroughputPoint, 0, len(d.Trend))
	for _, p := range d.Trend {
		points = append(points, dto.ThroughputPoint{
			BucketStart:     p.BucketStart,
			TokensPerSecond: p.AvgTokensPerSecond,
		})
	}
	dto.Success(c, points)
}

// Models 可用的模型过滤项
// @Summary 查询模型列表
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[dto.FilterOptionsResponse]
// @Router /v1/metrics/models [get]
func (h *MetricsHandler) Models(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	dto.Success(c, dto.FilterOptionsResponse{Values: d.Models})
}

// UserRoles 可用的角色过滤项
// @Summary 查询角色列表
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[dto.FilterOptionsResponse]
// @Router /v1/metrics/user-roles [get]
func (h *MetricsHandler) UserRoles(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	dto.Success(c, dto.FilterOptionsResponse{Values: d.UserRoles})
}

// RecentRequests 最近请求，绕过看板缓存直接读取
// @Summary 查询最近请求
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[[]entity.MetricRecord]
// @Router /v1/metrics/recent-requests [get]
func (h *MetricsHandler) RecentRequests(c *gin.Context) {
	var query dto.RecentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	records, err := h.metricRepo.ListRecent(c.Request.Context(), repository.RecentQuery{
		Limit:  query.Limit,
		Model:  query.Model,
		Status: entity.RequestStatus(query.Status),
	})
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, records)
}

// Realtime 当日实时计数快照
// @Summary 查询当日实时计数
// @Tags Metrics
// @Produce json
// @Success 200 {object} dto.Response[redis.Snapshot]
// @Router /v1/metrics/realtime [get]
func (h *MetricsHandler) Realtime(c *gin.Context) {
	if h.realtime == nil {
		dto.Success(c, &redis.Snapshot{Date: h.now().UTC().Format("2006-01-02")})
		return
	}

	snap, err := h.realtime.Today(c.Request.Context(), h.now().UTC())
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, snap)
}
