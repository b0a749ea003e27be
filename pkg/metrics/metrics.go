// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "movecrm"
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

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 报价
	QuotesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "created_total",
			Help:      "Total number of quotes created",
		},
		[]string{"tenant_slug", "source"}, // source: public/staff
	)

	QuoteTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "transitions_total",
			Help:      "Total number of quote status transitions",
		},
		[]string{"tenant_slug", "to_status"},
	)

	QuoteTotalAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "total_amount",
			Help:      "Final quote amounts",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"tenant_slug"},
	)

	// 限流指标
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of rate limit admission decisions",
		},
		[]string{"endpoint", "decision"}, // decision: allowed/denied/error
	)

	// 租户解析指标
	TenantResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Total number of tenant context resolutions",
		},
		[]string{"result"}, // result: ok/unresolved/unknown/mismatch/failed
	)

	// 检测指标
	DetectionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "calls_total",
			Help:      "Total number of recognition service calls",
		},
		[]string{"status"},
	)

	DetectionCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "call_duration_seconds",
			Help:      "Recognition service call duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{},
	)

	DetectionItemsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "items_matched_total",
			Help:      "Detected items matched against the tenant catalog",
		},
		[]string{"tenant_slug", "matched"}, // matched: matched/unmatched
	)

	// 队列指标
	DetectionJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "jobs_processed_total",
			Help:      "Total number of detection jobs processed",
		},
		[]string{"status"},
	)

	DetectionStreamLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "stream_lag",
			Help:      "Detection job stream consumer lag",
		},
		[]string{"stream", "consumer_group"},
	)
)
