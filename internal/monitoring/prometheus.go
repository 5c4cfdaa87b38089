// Package monitoring provides Prometheus metrics for COMPARA-CORE.
//
// Exposed metrics:
//   - compara_core_http_requests_total{method, endpoint, status_code}
//   - compara_core_http_request_duration_seconds{method, endpoint}
//   - compara_core_cache_operations_total{operation, result, tier}
//   - compara_core_insights_generated_total{source}
//   - compara_core_narrative_failures_total{reason}
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compara_core_http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compara_core_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compara_core_cache_operations_total",
			Help: "Cache operations by tier and result",
		},
		[]string{"operation", "result", "tier"},
	)

	insightsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compara_core_insights_generated_total",
			Help: "Insight payload generations by source engine",
		},
		[]string{"source"},
	)

	narrativeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compara_core_narrative_failures_total",
			Help: "Narrative generation failures by reason",
		},
		[]string{"reason"},
	)
)

// SetupPrometheusMetrics mounts the /metrics endpoint on the router.
func SetupPrometheusMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware records request counts and latency per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(
			c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).
			Observe(time.Since(start).Seconds())
	}
}

// RecordCacheOperation records a cache get/set/invalidate outcome for a tier.
func RecordCacheOperation(operation, result, tier string) {
	cacheOperationsTotal.WithLabelValues(operation, result, tier).Inc()
}

// RecordInsightsGeneration records one payload generation by source engine.
func RecordInsightsGeneration(source string) {
	insightsGeneratedTotal.WithLabelValues(source).Inc()
}

// RecordNarrativeFailure records an AI narrative failure by reason.
func RecordNarrativeFailure(reason string) {
	narrativeFailuresTotal.WithLabelValues(reason).Inc()
}
