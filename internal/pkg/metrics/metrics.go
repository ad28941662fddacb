package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 各组件上报的 Prometheus 指标。调用 InitMetrics 后方可使用。
var (
	HTTPRequestTotal      *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	CacheHitTotal         *prometheus.CounterVec
	CacheMissTotal        *prometheus.CounterVec
	CacheEvictionTotal    prometheus.Counter
	RateLimitWaitDuration prometheus.Histogram
	RateLimitRejectTotal  prometheus.Counter
)

var initOnce sync.Once

// InitMetrics 注册全部指标。重复调用只生效一次。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projectmgmt_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "projectmgmt_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		CacheHitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projectmgmt_cache_hits_total",
			Help: "Daily metrics cache hits by counter name.",
		}, []string{"counter"})

		CacheMissTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projectmgmt_cache_misses_total",
			Help: "Daily metrics cache misses by counter name.",
		}, []string{"counter"})

		CacheEvictionTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projectmgmt_cache_evictions_total",
			Help: "Stale day-keyed cache entries evicted on rollover.",
		})

		RateLimitWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "projectmgmt_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a rate limit token.",
			Buckets: prometheus.DefBuckets,
		})

		RateLimitRejectTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projectmgmt_ratelimit_rejects_total",
			Help: "Requests rejected by the rate limiter.",
		})

		prometheus.MustRegister(
			HTTPRequestTotal,
			HTTPRequestDuration,
			CacheHitTotal,
			CacheMissTotal,
			CacheEvictionTotal,
			RateLimitWaitDuration,
			RateLimitRejectTotal,
		)
	})
}
