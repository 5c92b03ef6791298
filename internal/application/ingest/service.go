package ingest

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"

	"llm-observability-api/internal/application/pricing"
	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/logger"
)

// Realtime 当日实时计数端口，可选依赖
type Realtime interface {
	Record(ctx context.Context, record *entity.MetricRecord) error
}

// Service 指标采集服务
type Service struct {
	table     *pricing.Table
	buffer    *Buffer
	eventRepo repository.EventRepository
	realtime  Realtime
	now       func() time.Time
}

// NewService 创建采集服务；realtime 可为 nil
func NewService(table *pricing.Table, buffer *Buffer, eventRepo repository.EventRepository, realtime Realtime) *Service {
	return &Service{
		table:     table,
		buffer:    buffer,
		eventRepo: eventRepo,
		realtime:  realtime,
		now:       time.Now,
	}
}

// Submit 采纳一条指标记录，返回服务端计算的成本。
// 校验通过并计费后入队即返回，落库由后台批量完成。
func (s *Service) Submit(ctx context.Context, in *Input) (float64, error) {
	tracer := otel.Tracer("application.ingest")
	ctx, span := tracer.Start(ctx, "ingest.Service.Submit")
	defer span.End()

	if err := validate(in); err != nil {
		return 0, err
	}

	cost, err := s.table.Cost(in.Model, in.InputTokens, in.OutputTokens)
	if err != nil {
		return 0, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	component := in.Component
	if component == "" {
		component = entity.ComponentAPIRouter
	}

	record := &entity.MetricRecord{
		RequestID:       in.RequestID,
		Timestamp:       ts,
		UserID:          in.UserID,
		UserRole:        in.UserRole,
		Model:           in.Model,
		InputTokens:     in.InputTokens,
		OutputTokens:    in.OutputTokens,
		LatencyMs:       in.LatencyMs,
		TTFTMs:          in.TTFTMs,
		TokensPerSecond: in.TokensPerSecond,
		CostUSD:         cost,
		Status:          in.Status,
		ErrorType:       in.ErrorType,
		ErrorMessage:    in.ErrorMessage,
		Component:       component,
		CacheHit:        in.CacheHit,
		TraceID:         in.TraceID,
		SpanID:          in.SpanID,
	}
	if err := s.buffer.Enqueue(record); err != nil {
		return 0, err
	}

	// 实时计数失败只影响低延迟读数，不影响采纳结果
	if s.realtime != nil {
		if err := s.realtime.Record(ctx, record); err != nil {
			logger.Warn(ctx, "failed to update realtime counters", "error", err.Error())
		}
	}
	return cost, nil
}

// SecurityEventInput 安全事件上报载荷
type SecurityEventInput struct {
	RequestID   string
	Timestamp   time.Time
	Layer       entity.SecurityLayer
	Action      string
	UserID      string
	UserRole    entity.UserRole
	Details     json.RawMessage
	Blocked     bool
	ThreatLevel string
}

// RecordSecurityEvent 记录一条安全层事件，立即落库
func (s *Service) RecordSecurityEvent(ctx context.Context, in *SecurityEventInput) error {
	if !in.Layer.Valid() {
		return apperrors.ErrValidationFailed.WithDetail("layer: " + string(in.Layer))
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	event := &entity.SecurityEvent{
		RequestID:   in.RequestID,
		Timestamp:   ts,
		Layer:       in.Layer,
		Action:      in.Action,
		UserID:      in.UserID,
		UserRole:    in.UserRole,
		Details:     in.Details,
		Blocked:     in.Blocked,
		ThreatLevel: in.ThreatLevel,
	}
	if err := s.eventRepo.CreateSecurityEvent(ctx, event); err != nil {
		logger.Error(ctx, "failed to record security event", err, "layer", in.Layer)
		return apperrors.ErrStorageWrite.WithError(err)
	}
	return nil
}

// RecordRoutingDecision 记录一条路由决策事件
func (s *Service) RecordRoutingDecision(ctx context.Context, decision *entity.RoutingDecision) error {
	if decision.Timestamp.IsZero() {
		decision.Timestamp = s.now().UTC()
	}
	if err := s.eventRepo.CreateRoutingDecision(ctx, decision); err != nil {
		logger.Error(ctx, "failed to record routing decision", err)
		return apperrors.ErrStorageWrite.WithError(err)
	}
	return nil
}

// RecordCacheStat 记录一条语义缓存命中事件
func (s *Service) RecordCacheStat(ctx context.Context, stat *entity.CacheStat) error {
	if stat.Timestamp.IsZero() {
		stat.Timestamp = s.now().UTC()
	}
	if err := s.eventRepo.CreateCacheStat(ctx, stat); err != nil {
		logger.Error(ctx, "failed to record cache stat", err)
		return apperrors.ErrStorageWrite.WithError(err)
	}
	return nil
}

// RecordPIIEvent 记录一条 PII 检测事件
func (s *Service) RecordPIIEvent(ctx context.Context, event *entity.PIIEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.eventRepo.CreatePIIEvent(ctx, event); err != nil {
		logger.Error(ctx, "failed to record pii event", err)
		return apperrors.ErrStorageWrite.WithError(err)
	}
	return nil
}
