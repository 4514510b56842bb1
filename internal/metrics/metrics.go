package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bizportal",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bizportal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "cashflow",
			Name:      "recommendations_total",
			Help:      "Collection recommendations produced, by source.",
		},
		[]string{"source"},
	)

	aiFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "ai",
			Name:      "fallbacks_total",
			Help:      "AI generations that fell back to deterministic output.",
		},
		[]string{"feature"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events received, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "mail",
			Name:      "sent_total",
			Help:      "Outgoing emails by template and outcome.",
		},
		[]string{"template", "outcome"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"scope"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bizportal",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job executions.",
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		recommendations,
		aiFallbacks,
		webhookEvents,
		emailsSent,
		rateLimited,
		jobRuns,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records in-flight, count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordRecommendations(source string, n int) {
	recommendations.WithLabelValues(source).Add(float64(n))
}

func RecordAIFallback(feature string) {
	aiFallbacks.WithLabelValues(feature).Inc()
}

func RecordWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func RecordEmail(template string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	emailsSent.WithLabelValues(template, outcome).Inc()
}

func RecordRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

func RecordJobRun(job string, err error) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}
