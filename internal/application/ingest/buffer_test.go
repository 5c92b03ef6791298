package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"llm-observability-api/internal/config"
	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
)

type fakeMetricRepo struct {
	mu       sync.Mutex
	batches  [][]*entity.MetricRecord
	failures int
	calls    int
}

func (f *fakeMetricRepo) BulkInsert(ctx context.Context, records []*entity.MetricRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("storage unavailable")
	}
	batch := make([]*entity.MetricRecord, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeMetricRepo) ListRange(ctx context.Context, from, to time.Time, filter repository.MetricFilter) ([]*entity.MetricRecord, error) {
	return nil, nil
}

func (f *fakeMetricRepo) ListRecent(ctx context.Context, q repository.RecentQuery) ([]*entity.MetricRecord, error) {
	return nil, nil
}

func (f *fakeMetricRepo) DistinctModels(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeMetricRepo) DistinctUserRoles(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeMetricRepo) CountAll(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeMetricRepo) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *fakeMetricRepo) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		QueueSize:     100,
		BatchSize:     10,
		FlushInterval: 20 * time.Millisecond,
		MaxRetries:    3,
		RetryBackoff: config.BackoffConfig{
			Initial:    time.Millisecond,
			Max:        5 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func testRecord(i int) *entity.MetricRecord {
	return &entity.MetricRecord{
		RequestID: fmt.Sprintf("req-%d", i),
		Timestamp: time.Now().UTC(),
		UserID:    "u1",
		UserRole:  entity.RoleEmployee,
		Model:     "llama-3.1-8b-instant",
		Status:    entity.StatusSuccess,
		Component: entity.ComponentAPIRouter,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBufferFlushOnBatchSize(t *testing.T) {
	repo := &fakeMetricRepo{}
	buf := NewBuffer(testIngestConfig(), repo)
	defer buf.Stop()

	for i := 0; i < 10; i++ {
		if err := buf.Enqueue(testRecord(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	waitFor(t, func() bool { return repo.stored() == 10 })
	if got := repo.batchCount(); got != 1 {
		t.Errorf("batch count = %d, want 1", got)
	}
}

func TestBufferFlushOnInterval(t *testing.T) {
	repo := &fakeMetricRepo{}
	buf := NewBuffer(testIngestConfig(), repo)
	defer buf.Stop()

	if err := buf.Enqueue(testRecord(0)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// 单条记录不足批大小，只能靠定时器触发
	waitFor(t, func() bool { return repo.stored() == 1 })
}

// blockingRepo 阻塞 BulkInsert 直到放行，用于稳定构造队列打满的场景
type blockingRepo struct {
	fakeMetricRepo
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRepo) BulkInsert(ctx context.Context, records []*entity.MetricRecord) error {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeMetricRepo.BulkInsert(ctx, records)
}

func TestBufferShedsWhenFull(t *testing.T) {
	cfg := testIngestConfig()
	cfg.QueueSize = 4
	cfg.BatchSize = 1
	cfg.FlushInterval = time.Hour

	repo := &blockingRepo{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	buf := NewBuffer(cfg, repo)

	// 第一条进入刷写并阻塞，后续填满队列
	if err := buf.Enqueue(testRecord(0)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	<-repo.entered

	var rejected int
	for i := 1; i < 20; i++ {
		if err := buf.Enqueue(testRecord(i)); err != nil {
			if !apperrors.IsCode(err, apperrors.CodeBackpressure) {
				t.Fatalf("unexpected error: %v", err)
			}
			rejected++
		}
	}
	if rejected != 15 {
		t.Errorf("rejected = %d, want 15 (queue holds 4 of 19)", rejected)
	}

	// 放行全部刷写后收尾
	go func() {
		for range repo.entered {
		}
	}()
	close(repo.release)
	buf.Stop()
	close(repo.entered)

	if got := repo.stored(); got != 5 {
		t.Errorf("stored = %d, want 5 (accepted records survive)", got)
	}
}

func TestBufferRetriesThenRecovers(t *testing.T) {
	repo := &fakeMetricRepo{failures: 2}
	buf := NewBuffer(testIngestConfig(), repo)
	defer buf.Stop()

	for i := 0; i < 10; i++ {
		if err := buf.Enqueue(testRecord(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	waitFor(t, func() bool { return repo.stored() == 10 })

	repo.mu.Lock()
	calls := repo.calls
	repo.mu.Unlock()
	if calls != 3 {
		t.Errorf("BulkInsert calls = %d, want 3 (2 failures + 1 success)", calls)
	}
}

func TestBufferDropsAfterRetriesExhausted(t *testing.T) {
	cfg := testIngestConfig()
	cfg.MaxRetries = 2

	repo := &fakeMetricRepo{failures: 10}
	buf := NewBuffer(cfg, repo)

	for i := 0; i < 10; i++ {
		if err := buf.Enqueue(testRecord(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	buf.Stop()

	if got := repo.stored(); got != 0 {
		t.Errorf("stored = %d, want 0 after batch dropped", got)
	}
	repo.mu.Lock()
	calls := repo.calls
	repo.mu.Unlock()
	if calls != 3 {
		t.Errorf("BulkInsert calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

// dedupeRepo 模拟按 request_id 去重的存储：冲突行静默跳过。
// ackLost 次写入数据已生效但返回错误，构造"落库成功、应答丢失"后整批重发的场景
type dedupeRepo struct {
	fakeMetricRepo
	dmu     sync.Mutex
	byID    map[string]*entity.MetricRecord
	ackLost int
	inserts int
}

func (d *dedupeRepo) BulkInsert(ctx context.Context, records []*entity.MetricRecord) error {
	d.dmu.Lock()
	defer d.dmu.Unlock()
	d.inserts++
	if d.byID == nil {
		d.byID = make(map[string]*entity.MetricRecord)
	}
	for _, r := range records {
		if _, ok := d.byID[r.RequestID]; ok {
			continue
		}
		d.byID[r.RequestID] = r
	}
	if d.ackLost > 0 {
		d.ackLost--
		return errors.New("write acknowledgment lost")
	}
	return nil
}

func (d *dedupeRepo) persisted() int {
	d.dmu.Lock()
	defer d.dmu.Unlock()
	return len(d.byID)
}

func TestBufferDuplicateRequestIDStoredOnce(t *testing.T) {
	cfg := testIngestConfig()
	cfg.FlushInterval = time.Hour // 只靠 Stop 触发

	repo := &dedupeRepo{ackLost: 1}
	buf := NewBuffer(cfg, repo)

	// 同一 request_id 重发一次，外加一条正常记录
	if err := buf.Enqueue(testRecord(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := buf.Enqueue(testRecord(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := buf.Enqueue(testRecord(2)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	buf.Stop()

	repo.dmu.Lock()
	inserts := repo.inserts
	repo.dmu.Unlock()
	if inserts < 2 {
		t.Fatalf("BulkInsert calls = %d, want >= 2 (batch resent after lost ack)", inserts)
	}
	if got := repo.persisted(); got != 2 {
		t.Errorf("persisted records = %d, want 2 (duplicate request_id collapsed)", got)
	}
	repo.dmu.Lock()
	_, ok := repo.byID["req-1"]
	repo.dmu.Unlock()
	if !ok {
		t.Error("req-1 missing after dedupe")
	}
}

func TestBufferStopFlushesRemainder(t *testing.T) {
	cfg := testIngestConfig()
	cfg.FlushInterval = time.Hour // 只靠 Stop 触发

	repo := &fakeMetricRepo{}
	buf := NewBuffer(cfg, repo)

	for i := 0; i < 7; i++ {
		if err := buf.Enqueue(testRecord(i)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	buf.Stop()
	buf.Stop() // 幂等

	if got := repo.stored(); got != 7 {
		t.Errorf("stored = %d, want 7 after final flush", got)
	}
}
