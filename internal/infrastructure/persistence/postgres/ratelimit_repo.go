// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"llm-observability-api/internal/domain/entity"
)

type RateLimitRepository struct {
	client *Client
}

func NewRateLimitRepository(client *Client) *RateLimitRepository {
	return &RateLimitRepository{client: client}
}

// UpsertWindow 记录窗口计数与超限标记
func (r *RateLimitRepository) UpsertWindow(ctx context.Context, window *entity.RateLimitWindow) error {
	ctx, span := tracer.Start(ctx, "postgres.RateLimitRepository.UpsertWindow")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}, {Name: "endpoint"}, {Name: "window_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "exceeded", "updated_at"}),
	}).Create(window).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert rate limit window: %w", err)
	}
	return nil
}
