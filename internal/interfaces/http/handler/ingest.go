// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"llm-observability-api/internal/application/ingest"
	"llm-observability-api/internal/interfaces/http/dto"
)

// IngestHandler 指标采集处理器
type IngestHandler struct {
	service *ingest.Service
}

// NewIngestHandler 创建采集处理器
func NewIngestHandler(service *ingest.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// SubmitMetric 上报一条调用指标
// @Summary 上报调用指标
// @Tags Ingest
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Router /v1/ingest/metrics [post]
func (h *IngestHandler) SubmitMetric(c *gin.Context) {
	var req dto.IngestMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	cost, err := h.service.Submit(c.Request.Context(), req.ToInput())
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	dto.Accepted(c, dto.IngestAcceptedResponse{
		RequestID: req.RequestID,
		CostUSD:   cost,
	})
}

// SubmitSecurityEvent 上报安全层事件
// @Summary 上报安全事件
// @Tags Ingest
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Router /v1/ingest/events/security [post]
func (h *IngestHandler) SubmitSecurityEvent(c *gin.Context) {
	var req dto.SecurityEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RecordSecurityEvent(c.Request.Context(), req.ToInput()); err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Accepted(c, dto.IngestAcceptedResponse{RequestID: req.RequestID})
}

// SubmitRoutingDecision 上报路由决策事件
// @Summary 上报路由决策
// @Tags Ingest
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Router /v1/ingest/events/routing [post]
func (h *IngestHandler) SubmitRoutingDecision(c *gin.Context) {
	var req dto.RoutingDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RecordRoutingDecision(c.Request.Context(), req.ToEntity()); err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Accepted(c, dto.IngestAcceptedResponse{RequestID: req.RequestID})
}

// SubmitCacheStat 上报语义缓存事件
// @Summary 上报缓存命中事件
// @Tags Ingest
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Router /v1/ingest/events/cache [post]
func (h *IngestHandler) SubmitCacheStat(c *gin.Context) {
	var req dto.CacheStatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RecordCacheStat(c.Request.Context(), req.ToEntity()); err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Accepted(c, dto.IngestAcceptedResponse{RequestID: req.RequestID})
}

// SubmitPIIEvent 上报 PII 检测事件
// @Summary 上报 PII 事件
// @Tags Ingest
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Router /v1/ingest/events/pii [post]
func (h *IngestHandler) SubmitPIIEvent(c *gin.Context) {
	var req dto.PIIEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RecordPIIEvent(c.Request.Context(), req.ToEntity()); err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Accepted(c, dto.IngestAcceptedResponse{RequestID: req.RequestID})
}
