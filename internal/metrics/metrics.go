package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analyzer.
type Metrics struct {
	// Analysis metrics
	Analyses        *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec
	Duplicates      prometheus.Counter

	// Scorer metrics
	ScorerLatency *prometheus.HistogramVec
	ScorerRetries prometheus.Counter

	// Feedback metrics
	Feedback *prometheus.CounterVec

	// Analytics pipeline metrics
	AnalyticsFailures *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Analyses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total creative analyses by objective and outcome",
			},
			[]string{"objective", "status"},
		),
		AnalysisLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_latency_seconds",
				Help:      "End-to-end analysis latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		Duplicates: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_analyses_total",
				Help:      "Analyses whose fingerprint matched a prior session",
			},
		),
		ScorerLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scorer_latency_seconds",
				Help:      "Generative scorer call latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		ScorerRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scorer_retries_total",
				Help:      "Scorer attempts beyond the first",
			},
		),
		Feedback: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "Feedback submissions by overall rating",
			},
			[]string{"rating"},
		),
		AnalyticsFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_failures_total",
				Help:      "Swallowed best-effort analytics failures by path",
			},
			[]string{"path"},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by path and status",
			},
			[]string{"path", "status"},
		),
		HTTPLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"path"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records one analysis request outcome.
func (m *Metrics) RecordAnalysis(objective, status string, latency time.Duration) {
	m.Analyses.WithLabelValues(objective, status).Inc()
	m.AnalysisLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordScorerCall records one scorer attempt.
func (m *Metrics) RecordScorerCall(status string, latency time.Duration) {
	m.ScorerLatency.WithLabelValues(status).Observe(latency.Seconds())
}

// RecordFeedback records one accepted feedback submission.
func (m *Metrics) RecordFeedback(overallRating int) {
	m.Feedback.WithLabelValues(strconv.Itoa(overallRating)).Inc()
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(path string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(path).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}
