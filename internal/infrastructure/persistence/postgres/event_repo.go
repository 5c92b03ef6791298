// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"llm-observability-api/internal/domain/entity"
)

type EventRepository struct {
	client *Client
}

func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

func (r *EventRepository) CreateSecurityEvent(ctx context.Context, event *entity.SecurityEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.CreateSecurityEvent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create security event: %w", err)
	}
	return nil
}

func (r *EventRepository) CreateRoutingDecision(ctx context.Context, decision *entity.RoutingDecision) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.CreateRoutingDecision")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(decision).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create routing decision: %w", err)
	}
	return nil
}

func (r *EventRepository) CreateCacheStat(ctx context.Context, stat *entity.CacheStat) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.CreateCacheStat")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(stat).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create cache stat: %w", err)
	}
	return nil
}

func (r *EventRepository) CreatePIIEvent(ctx context.Context, event *entity.PIIEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.CreatePIIEvent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create pii event: %w", err)
	}
	return nil
}

func (r *EventRepository) SumCacheCostSaved(ctx context.Context, from, to time.Time) (float64, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.SumCacheCostSaved")
	defer span.End()

	var total float64
	err := getDB(ctx, r.client.db).
		Model(&entity.CacheStat{}).
		Where("timestamp >= ? AND timestamp < ? AND hit = ?", from, to, true).
		Select("COALESCE(SUM(cost_saved),0)").
		Scan(&total).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum cache savings: %w", err)
	}
	return total, nil
}

func (r *EventRepository) SumRoutingCostSavings(ctx context.Context, from, to time.Time) (float64, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.SumRoutingCostSavings")
	defer span.End()

	var total float64
	err := getDB(ctx, r.client.db).
		Model(&entity.RoutingDecision{}).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Select("COALESCE(SUM(cost_savings),0)").
		Scan(&total).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum routing savings: %w", err)
	}
	return total, nil
}
