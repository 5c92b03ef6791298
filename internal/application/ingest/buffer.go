package ingest

import (
	"context"
	"sync"
	"time"

	"llm-observability-api/internal/config"
	"llm-observability-api/internal/domain/entity"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/metrics"
)

// Buffer 有界批量写缓冲。
// 单个后台 goroutine 负责攒批与落库，入队方永不阻塞：
// 队列满时丢弃新到的记录并返回 Backpressure 错误。
type Buffer struct {
	cfg  config.IngestConfig
	repo repository.MetricRepository

	ch     chan *entity.MetricRecord
	stopCh chan struct{}
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewBuffer 创建缓冲并启动后台刷写 goroutine
func NewBuffer(cfg config.IngestConfig, repo repository.MetricRepository) *Buffer {
	b := &Buffer{
		cfg:    cfg,
		repo:   repo,
		ch:     make(chan *entity.MetricRecord, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Enqueue 将记录放入缓冲。
// 记录一经接收即视为已采纳，后续落库失败不回传给调用方。
func (b *Buffer) Enqueue(record *entity.MetricRecord) error {
	select {
	case b.ch <- record:
		metrics.IngestQueueDepth.Set(float64(len(b.ch)))
		metrics.IngestRecordsTotal.WithLabelValues("enqueued").Inc()
		return nil
	default:
		metrics.IngestRecordsTotal.WithLabelValues("shed").Inc()
		return apperrors.ErrBackpressure.WithDetail("ingestion buffer full")
	}
}

// Stop 停止后台刷写并把剩余记录全部落库。
// 幂等，可重复调用。
func (b *Buffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
	})
}

func (b *Buffer) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*entity.MetricRecord, 0, b.cfg.BatchSize)

	for {
		select {
		case record := <-b.ch:
			batch = append(batch, record)
			metrics.IngestQueueDepth.Set(float64(len(b.ch)))
			if len(batch) >= b.cfg.BatchSize {
				b.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = batch[:0]
			}
		case <-b.stopCh:
			// 排空队列后做最终刷写
			for {
				select {
				case record := <-b.ch:
					batch = append(batch, record)
					if len(batch) >= b.cfg.BatchSize {
						b.flush(batch)
						batch = batch[:0]
					}
				default:
					if len(batch) > 0 {
						b.flush(batch)
					}
					metrics.IngestQueueDepth.Set(0)
					return
				}
			}
		}
	}
}

// flush 将一批记录写入存储，失败时指数退避重试。
// 重试耗尽后丢弃该批并记录数据丢失告警，调用方已经收到 202，不再回传错误。
func (b *Buffer) flush(batch []*entity.MetricRecord) {
	ctx := context.Background()
	start := time.Now()

	var err error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(b.cfg.RetryBackoff.CalculateBackoff(attempt - 1))
		}
		if err = b.repo.BulkInsert(ctx, batch); err == nil {
			metrics.IngestFlushDuration.Observe(time.Since(start).Seconds())
			if attempt == 0 {
				metrics.IngestFlushBatches.WithLabelValues("ok").Inc()
			} else {
				metrics.IngestFlushBatches.WithLabelValues("retried").Inc()
			}
			metrics.IngestRecordsTotal.WithLabelValues("persisted").Add(float64(len(batch)))
			return
		}
	}

	metrics.IngestFlushBatches.WithLabelValues("dropped").Inc()
	metrics.IngestRecordsTotal.WithLabelValues("lost").Add(float64(len(batch)))
	logger.Error(ctx, "data loss: metric batch dropped after retries exhausted", err,
		"batch_size", len(batch),
		"max_retries", b.cfg.MaxRetries,
	)
}
