package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"llm-observability-api/internal/infrastructure/messaging"
	"llm-observability-api/internal/interfaces/http/dto"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/logger"
)

// RollupHandler 日汇总任务触发处理器
type RollupHandler struct {
	producer *messaging.Producer

	now func() time.Time
}

// NewRollupHandler 创建日汇总处理器
func NewRollupHandler(producer *messaging.Producer) *RollupHandler {
	return &RollupHandler{
		producer: producer,
		now:      time.Now,
	}
}

// TriggerDaily 投递一条日汇总任务到消息流，由 rollup-worker 异步执行。
// 重复触发同一天是安全的，汇总为整日全量替换。
// @Summary 触发日汇总
// @Tags Rollup
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.RollupAcceptedResponse]
// @Router /v1/rollups/daily [post]
func (h *RollupHandler) TriggerDaily(c *gin.Context) {
	// 请求体可选，缺省汇总昨天
	var req dto.RollupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	date := req.Date
	if date == "" {
		date = h.now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		dto.FromAppError(c, apperrors.ErrValidationFailed.WithDetail("date must be YYYY-MM-DD"))
		return
	}

	job := &messaging.RollupJobMessage{
		JobID:       uuid.New().String(),
		Date:        date,
		TriggeredBy: "api",
		RequestedAt: h.now().UTC().Format(time.RFC3339),
	}

	ctx := c.Request.Context()
	if _, err := h.producer.PublishRollupJob(ctx, job); err != nil {
		logger.Error(ctx, "failed to publish rollup job", err, "date", date)
		dto.FromAppError(c, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to enqueue rollup job"))
		return
	}

	dto.Accepted(c, dto.RollupAcceptedResponse{JobID: job.JobID, Date: date})
}
