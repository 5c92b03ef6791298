// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "llm_obs"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 采集缓冲指标
	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Current number of metric records waiting in the ingestion buffer",
		},
	)

	IngestRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of metric records offered to the ingestion buffer",
		},
		[]string{"outcome"}, // enqueued/rejected/shed
	)

	IngestFlushBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flush_batches_total",
			Help:      "Total number of flushed batches",
		},
		[]string{"status"}, // ok/retried/dropped
	)

	IngestFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flush_duration_seconds",
			Help:      "Metric store batch write duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// 限流指标
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of rate limit admission decisions",
		},
		[]string{"endpoint", "decision"}, // admitted/rejected
	)

	// 看板缓存指标
	DashboardCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "cache_requests_total",
			Help:      "Total number of dashboard cache lookups",
		},
		[]string{"result"}, // hit/miss/shared
	)

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "aggregation_duration_seconds",
			Help:      "Aggregation engine computation duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"range"},
	)

	// 日汇总指标
	RollupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "runs_total",
			Help:      "Total number of daily rollup executions",
		},
		[]string{"status"}, // ok/error
	)

	RollupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "duration_seconds",
			Help:      "Daily rollup duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60},
		},
	)
)
