package ingest

import (
	"context"
	"testing"
	"time"

	"llm-observability-api/internal/application/pricing"
	"llm-observability-api/internal/config"
	"llm-observability-api/internal/domain/entity"
	apperrors "llm-observability-api/pkg/errors"
)

type fakeEventRepo struct {
	security []*entity.SecurityEvent
	routing  []*entity.RoutingDecision
	cache    []*entity.CacheStat
	pii      []*entity.PIIEvent
}

func (f *fakeEventRepo) CreateSecurityEvent(ctx context.Context, e *entity.SecurityEvent) error {
	f.security = append(f.security, e)
	return nil
}

func (f *fakeEventRepo) CreateRoutingDecision(ctx context.Context, d *entity.RoutingDecision) error {
	f.routing = append(f.routing, d)
	return nil
}

func (f *fakeEventRepo) CreateCacheStat(ctx context.Context, s *entity.CacheStat) error {
	f.cache = append(f.cache, s)
	return nil
}

func (f *fakeEventRepo) CreatePIIEvent(ctx context.Context, e *entity.PIIEvent) error {
	f.pii = append(f.pii, e)
	return nil
}

func (f *fakeEventRepo) SumCacheCostSaved(ctx context.Context, from, to time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeEventRepo) SumRoutingCostSavings(ctx context.Context, from, to time.Time) (float64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*Service, *fakeMetricRepo) {
	t.Helper()
	repo := &fakeMetricRepo{}
	buf := NewBuffer(testIngestConfig(), repo)
	t.Cleanup(buf.Stop)

	table := pricing.NewTable(&config.PricingConfig{
		Models: map[string]config.ModelPrice{
			"llama-3.1-8b-instant": {InputPerMTok: 0.05, OutputPerMTok: 0.08},
		},
	})
	return NewService(table, buf, &fakeEventRepo{}, nil), repo
}

func validInput() *Input {
	return &Input{
		RequestID:    "req-1",
		UserID:       "u1",
		UserRole:     entity.RoleEmployee,
		Model:        "llama-3.1-8b-instant",
		InputTokens:  1000,
		OutputTokens: 500,
		LatencyMs:    120,
		Status:       entity.StatusSuccess,
		Component:    entity.ComponentAPIRouter,
	}
}

func TestSubmitComputesCost(t *testing.T) {
	svc, repo := newTestService(t)

	cost, err := svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if cost != 0.00009 {
		t.Errorf("Submit() cost = %v, want 0.00009", cost)
	}
	svc.buffer.Stop()

	if got := repo.stored(); got != 1 {
		t.Fatalf("stored = %d, want 1", got)
	}
	rec := repo.batches[0][0]
	if rec.CostUSD != 0.00009 {
		t.Errorf("CostUSD = %v, want 0.00009", rec.CostUSD)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Timestamp should default to now")
	}
}

func TestSubmitRejectsUnknownModel(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.Model = "gpt-oss-120b"
	_, err := svc.Submit(context.Background(), in)
	if !apperrors.IsCode(err, apperrors.CodeUnknownModel) {
		t.Fatalf("error = %v, want UnknownModel", err)
	}
	svc.buffer.Stop()
	if got := repo.stored(); got != 0 {
		t.Errorf("stored = %d, want 0", got)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"缺少 request_id", func(in *Input) { in.RequestID = " " }},
		{"缺少 user_id", func(in *Input) { in.UserID = "" }},
		{"非法角色", func(in *Input) { in.UserRole = "guest" }},
		{"缺少模型", func(in *Input) { in.Model = "" }},
		{"负 token 数", func(in *Input) { in.InputTokens = -1 }},
		{"负延迟", func(in *Input) { in.LatencyMs = -5 }},
		{"非法状态", func(in *Input) { in.Status = "pending" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			_, err := svc.Submit(context.Background(), in)
			if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
				t.Errorf("error = %v, want ValidationFailed", err)
			}
		})
	}
}

func TestRecordSecurityEventRejectsUnknownLayer(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.RecordSecurityEvent(context.Background(), &SecurityEventInput{
		RequestID: "req-1",
		Layer:     "waf",
		Action:    "blocked",
	})
	if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
		t.Errorf("error = %v, want ValidationFailed", err)
	}
}
