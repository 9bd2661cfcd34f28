package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "elfbaby"

var (
	// 抓取
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Outbound fetch attempts by status class",
		},
		[]string{"class"},
	)
	RateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_rate_limit_retries_total",
		Help:      "Fetch retries caused by HTTP 429",
	})

	// 导入
	ProductsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_imported_total",
			Help:      "Products inserted by source",
		},
		[]string{"source"},
	)
	ThreadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threads_created_total",
		Help:      "Product threads inserted",
	})

	// 前台
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of storefront HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// StatusClass 归类状态码，err 非空时为 "error"
func StatusClass(status int, err error) string {
	switch {
	case err != nil:
		return "error"
	case status == 429:
		return "429"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// ObserveRequest 记录一次前台请求
func ObserveRequest(method, path string, status int, seconds float64) {
	RequestDuration.With(prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}).Observe(seconds)
}
