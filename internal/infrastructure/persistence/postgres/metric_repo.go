// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
)

type MetricRepository struct {
	client *Client
}

func NewMetricRepository(client *Client) *MetricRepository {
	return &MetricRepository{client: client}
}

// BulkInsert 批量写入指标记录。
// request_id 冲突的行静默跳过，重放同一批次不产生重复数据。
func (r *MetricRepository) BulkInsert(ctx context.Context, records []*entity.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.BulkInsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(&records).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to bulk insert metrics: %w", err)
	}
	return nil
}

func applyFilter(db *gorm.DB, filter repository.MetricFilter) *gorm.DB {
	if filter.UserRole != "" {
		db = db.Where("user_role = ?", filter.UserRole)
	}
	if filter.Model != "" {
		db = db.Where("model = ?", filter.Model)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	return db
}

// ListRange 加载 [from, to) 内匹配过滤条件的记录
func (r *MetricRepository) ListRange(ctx context.Context, from, to time.Time, filter repository.MetricFilter) ([]*entity.MetricRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.ListRange")
	defer span.End()

	db := getDB(ctx, r.client.db).
		Where("timestamp >= ? AND timestamp < ?", from, to)
	db = applyFilter(db, filter)

	var records []*entity.MetricRecord
	if err := db.Order("timestamp ASC").Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return records, nil
}

// ListRecent 按时间倒序返回最近的记录
func (r *MetricRepository) ListRecent(ctx context.Context, q repository.RecentQuery) ([]*entity.MetricRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.ListRecent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if q.Model != "" {
		db = db.Where("model = ?", q.Model)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var records []*entity.MetricRecord
	if err := db.Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent metrics: %w", err)
	}
	return records, nil
}

// DistinctModels 返回出现过的模型列表
func (r *MetricRepository) DistinctModels(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.DistinctModels")
	defer span.End()

	var models []string
	err := getDB(ctx, r.client.db).
		Model(&entity.MetricRecord{}).
		Distinct("model").
		Order("model ASC").
		Pluck("model", &models).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list distinct models: %w", err)
	}
	return models, nil
}

// DistinctUserRoles 返回出现过的用户角色列表
func (r *MetricRepository) DistinctUserRoles(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.DistinctUserRoles")
	defer span.End()

	var roles []string
	err := getDB(ctx, r.client.db).
		Model(&entity.MetricRecord{}).
		Distinct("user_role").
		Order("user_role ASC").
		Pluck("user_role", &roles).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list distinct user roles: %w", err)
	}
	return roles, nil
}

// CountAll 返回记录总数
func (r *MetricRepository) CountAll(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.MetricRepository.CountAll")
	defer span.End()

	var count int64
	if err := getDB(ctx, r.client.db).Model(&entity.MetricRecord{}).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return count, nil
}
