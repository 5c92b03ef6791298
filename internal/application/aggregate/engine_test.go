package aggregate

import (
	"context"
	"testing"
	"time"

	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
)

type stubMetricRepo struct {
	records []*entity.MetricRecord
	recent  []*entity.MetricRecord
	models  []string
	roles   []string
	delay   time.Duration
}

func (s *stubMetricRepo) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubMetricRepo) BulkInsert(ctx context.Context, records []*entity.MetricRecord) error {
	return nil
}

func (s *stubMetricRepo) ListRange(ctx context.Context, from, to time.Time, filter repository.MetricFilter) ([]*entity.MetricRecord, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	var out []*entity.MetricRecord
	for _, r := range s.records {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		if filter.Model != "" && r.Model != filter.Model {
			continue
		}
		if filter.UserRole != "" && r.UserRole != filter.UserRole {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubMetricRepo) ListRecent(ctx context.Context, q repository.RecentQuery) ([]*entity.MetricRecord, error) {
	return s.recent, s.wait(ctx)
}

func (s *stubMetricRepo) DistinctModels(ctx context.Context) ([]string, error) {
	return s.models, s.wait(ctx)
}

func (s *stubMetricRepo) DistinctUserRoles(ctx context.Context) ([]string, error) {
	return s.roles, s.wait(ctx)
}

func (s *stubMetricRepo) CountAll(ctx context.Context) (int64, error) { return 0, nil }

type stubEventRepo struct {
	cacheSaved   float64
	routingSaved float64
}

func (s *stubEventRepo) CreateSecurityEvent(ctx context.Context, e *entity.SecurityEvent) error {
	return nil
}

func (s *stubEventRepo) CreateRoutingDecision(ctx context.Context, d *entity.RoutingDecision) error {
	return nil
}

func (s *stubEventRepo) CreateCacheStat(ctx context.Context, st *entity.CacheStat) error { return nil }

func (s *stubEventRepo) CreatePIIEvent(ctx context.Context, e *entity.PIIEvent) error { return nil }

func (s *stubEventRepo) SumCacheCostSaved(ctx context.Context, from, to time.Time) (float64, error) {
	return s.cacheSaved, nil
}

func (s *stubEventRepo) SumRoutingCostSavings(ctx context.Context, from, to time.Time) (float64, error) {
	return s.routingSaved, nil
}

func TestDashboardAggregation(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	metricRepo := &stubMetricRepo{
		records: []*entity.MetricRecord{
			rec(now.Add(-2*time.Hour), "m1", entity.StatusSuccess, 100, 0.01, 1000),
			rec(now.Add(-time.Hour), "m1", entity.StatusSuccess, 200, 0.005, 500),
			rec(now.Add(-30*time.Minute), "m2", entity.StatusError, 500, 0.015, 2000),
			// 区间外的记录不参与
			rec(now.Add(-48*time.Hour), "m1", entity.StatusSuccess, 999, 1.0, 9999),
		},
		models: []string{"m1", "m2"},
		roles:  []string{"employee", "admin"},
	}
	engine := NewEngine(metricRepo, &stubEventRepo{cacheSaved: 0.002, routingSaved: 0.001}, time.Second, 20)
	engine.now = func() time.Time { return now }

	rng, err := ParseRange("24h", now)
	if err != nil {
		t.Fatalf("ParseRange() error = %v", err)
	}
	d, err := engine.Dashboard(context.Background(), rng, repository.MetricFilter{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}

	if d.KPIs.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3 (out-of-range excluded)", d.KPIs.TotalRequests)
	}
	if d.KPIs.SuccessRate != 66.7 {
		t.Errorf("SuccessRate = %v, want 66.7", d.KPIs.SuccessRate)
	}
	if d.KPIs.TotalCostUSD != 0.03 {
		t.Errorf("TotalCostUSD = %v, want 0.03", d.KPIs.TotalCostUSD)
	}
	if d.KPIs.CostSavedUSD != 0.003 {
		t.Errorf("CostSavedUSD = %v, want 0.003", d.KPIs.CostSavedUSD)
	}
	if len(d.Trend) != 24 {
		t.Errorf("trend buckets = %d, want 24", len(d.Trend))
	}
	if len(d.Models) != 2 || len(d.UserRoles) != 2 {
		t.Errorf("filters = %v / %v, want both populated", d.Models, d.UserRoles)
	}
}

func TestDashboardFilter(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	metricRepo := &stubMetricRepo{
		records: []*entity.MetricRecord{
			rec(now.Add(-time.Hour), "m1", entity.StatusSuccess, 100, 0.01, 1000),
			rec(now.Add(-time.Hour), "m2", entity.StatusSuccess, 100, 0.02, 1000),
		},
	}
	engine := NewEngine(metricRepo, &stubEventRepo{}, time.Second, 20)

	rng, _ := ParseRange("24h", now)
	d, err := engine.Dashboard(context.Background(), rng, repository.MetricFilter{Model: "m1"})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.KPIs.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1 after model filter", d.KPIs.TotalRequests)
	}
}

func TestDashboardEmptyRange(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(&stubMetricRepo{}, &stubEventRepo{}, time.Second, 20)

	rng, _ := ParseRange("1h", now)
	d, err := engine.Dashboard(context.Background(), rng, repository.MetricFilter{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.KPIs.TotalRequests != 0 || d.KPIs.SuccessRate != 0 {
		t.Errorf("empty range KPIs not zero: %+v", d.KPIs)
	}
	if len(d.CostByModel) != 0 {
		t.Errorf("CostByModel = %v, want empty", d.CostByModel)
	}
	if len(d.Trend) != 12 {
		t.Errorf("trend buckets = %d, want 12 for 1h at 5m", len(d.Trend))
	}
}

func TestDashboardTimeout(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	metricRepo := &stubMetricRepo{delay: time.Second}
	engine := NewEngine(metricRepo, &stubEventRepo{}, 20*time.Millisecond, 20)

	rng, _ := ParseRange("24h", now)
	_, err := engine.Dashboard(context.Background(), rng, repository.MetricFilter{})
	if !apperrors.IsCode(err, apperrors.CodeAggregationTimeout) {
		t.Fatalf("error = %v, want AggregationTimeout", err)
	}
}
