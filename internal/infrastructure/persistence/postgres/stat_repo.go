// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"llm-observability-api/internal/domain/entity"
)

type StatRepository struct {
	client *Client
}

func NewStatRepository(client *Client) *StatRepository {
	return &StatRepository{client: client}
}

// ReplaceDailyStat 按日期整行替换日汇总
func (r *StatRepository) ReplaceDailyStat(ctx context.Context, stat *entity.DailyStat) error {
	ctx, span := tracer.Start(ctx, "postgres.StatRepository.ReplaceDailyStat")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_requests", "success_count", "error_count", "timeout_count",
			"total_input_tokens", "total_output_tokens",
			"total_cost_usd", "cost_saved_usd",
			"avg_latency_ms", "p95_latency_ms",
			"cache_hit_count", "cache_hit_rate",
			"updated_at",
		}),
	}).Create(stat).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace daily stat: %w", err)
	}
	return nil
}

// ReplaceModelStats 替换指定日期的模型汇总。
// 先删后插，当天消失的模型不会留下陈旧行。
func (r *StatRepository) ReplaceModelStats(ctx context.Context, stats []*entity.ModelStat) error {
	ctx, span := tracer.Start(ctx, "postgres.StatRepository.ReplaceModelStats")
	defer span.End()

	if len(stats) == 0 {
		return nil
	}
	date := stats[0].Date

	db := getDB(ctx, r.client.db)
	if err := db.Where("date = ?", date).Delete(&entity.ModelStat{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear model stats: %w", err)
	}
	if err := db.Create(&stats).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace model stats: %w", err)
	}
	return nil
}

// GetDailyStat 读取指定日期的日汇总，不存在时返回 nil
func (r *StatRepository) GetDailyStat(ctx context.Context, date time.Time) (*entity.DailyStat, error) {
	ctx, span := tracer.Start(ctx, "postgres.StatRepository.GetDailyStat")
	defer span.End()

	var stat entity.DailyStat
	err := getDB(ctx, r.client.db).Where("date = ?", date).First(&stat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get daily stat: %w", err)
	}
	return &stat, nil
}

// ListModelStats 读取指定日期的模型汇总
func (r *StatRepository) ListModelStats(ctx context.Context, date time.Time) ([]*entity.ModelStat, error) {
	ctx, span := tracer.Start(ctx, "postgres.StatRepository.ListModelStats")
	defer span.End()

	var stats []*entity.ModelStat
	err := getDB(ctx, r.client.db).
		Where("date = ?", date).
		Order("model ASC").
		Find(&stats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list model stats: %w", err)
	}
	return stats, nil
}
