// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Intake
	PostsReceived   *prometheus.CounterVec
	FeedReconnects  prometheus.Counter
	AnalysesRunning prometheus.Gauge

	// Analysis
	PostsAnalyzed    *prometheus.CounterVec
	AnalysisLatency  prometheus.Histogram
	InferenceCalls   *prometheus.CounterVec
	InferenceLatency prometheus.Histogram
	AdjustedScore    prometheus.Histogram
	SideEffectErrors *prometheus.CounterVec
	SignalsPublished *prometheus.CounterVec

	// Feedback loop
	FollowUpsScheduled prometheus.Counter
	FollowUpsCompleted *prometheus.CounterVec
	FollowUpAttempts   prometheus.Counter
	SweepErrors        prometheus.Counter
	FollowUpsPurged    prometheus.Counter
	VipUpdates         *prometheus.CounterVec

	// Market data
	PriceLookups       *prometheus.CounterVec
	PriceLookupLatency prometheus.Histogram
	PriceCacheHits     *prometheus.CounterVec

	// Database
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health
	LastSuccessfulAnalysis prometheus.Gauge
	LastSuccessfulSweep    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "memecoin_signal_lab"
	}

	return &Metrics{
		PostsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "posts_received_total",
			Help:      "Total number of posts received by outcome",
		}, []string{"outcome"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		AnalysesRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "analyses_in_flight",
			Help:      "Number of analyses currently running",
		}),

		PostsAnalyzed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "posts_analyzed_total",
			Help:      "Total number of analyses by status",
		}, []string{"status"}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "End-to-end analysis latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		InferenceCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Total number of inference gateway calls by status",
		}, []string{"status"}),
		InferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "latency_seconds",
			Help:      "Inference gateway latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AdjustedScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "adjusted_confidence",
			Help:      "Distribution of adjusted confidence scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		SideEffectErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "side_effect_errors_total",
			Help:      "Total number of failed best-effort side effects",
		}, []string{"effect"}),
		SignalsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "published_total",
			Help:      "Total number of signals published by status",
		}, []string{"status"}),

		FollowUpsScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "followup",
			Name:      "scheduled_total",
			Help:      "Total number of follow-up tasks scheduled",
		}),
		FollowUpsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "followup",
			Name:      "completed_total",
			Help:      "Total number of follow-up tasks completed by outcome",
		}, []string{"outcome"}),
		FollowUpAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "followup",
			Name:      "attempts_total",
			Help:      "Total number of follow-up attempts",
		}),
		SweepErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "followup",
			Name:      "sweep_errors_total",
			Help:      "Total number of task failures during sweeps",
		}),
		FollowUpsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "followup",
			Name:      "purged_total",
			Help:      "Total number of completed tasks purged",
		}),
		VipUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vip",
			Name:      "updates_total",
			Help:      "Total number of VIP outcome merges by result",
		}, []string{"result"}),

		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Total number of market data lookups by status",
		}, []string{"status"}),
		PriceLookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookup_latency_seconds",
			Help:      "Market data provider latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PriceCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_requests_total",
			Help:      "Market data cache requests by result",
		}, []string{"result"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulAnalysis: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of last successful analysis",
		}),
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last follow-up sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPostReceived counts a post from the feed: accepted, dropped or invalid.
func RecordPostReceived(outcome string) {
	DefaultMetrics.PostsReceived.WithLabelValues(outcome).Inc()
}

// RecordFeedReconnect counts a feed reconnect attempt.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// SetAnalysesInFlight updates the in-flight analyses gauge.
func SetAnalysesInFlight(n int) {
	DefaultMetrics.AnalysesRunning.Set(float64(n))
}

// RecordAnalysis records an orchestrator run.
func RecordAnalysis(seconds float64, err error, unixNow int64) {
	DefaultMetrics.PostsAnalyzed.WithLabelValues(statusLabel(err)).Inc()
	DefaultMetrics.AnalysisLatency.Observe(seconds)
	if err == nil {
		DefaultMetrics.LastSuccessfulAnalysis.Set(float64(unixNow))
	}
}

// RecordAdjustedScore observes an adjusted confidence.
func RecordAdjustedScore(score float64) {
	DefaultMetrics.AdjustedScore.Observe(score)
}

// RecordInference records one inference gateway call.
func RecordInference(seconds float64, err error) {
	DefaultMetrics.InferenceCalls.WithLabelValues(statusLabel(err)).Inc()
	DefaultMetrics.InferenceLatency.Observe(seconds)
}

// RecordSideEffectError counts a failed best-effort side effect (graph, persist, schedule, publish).
func RecordSideEffectError(effect string) {
	DefaultMetrics.SideEffectErrors.WithLabelValues(effect).Inc()
}

// RecordSignalPublished records a broker publish.
func RecordSignalPublished(err error) {
	DefaultMetrics.SignalsPublished.WithLabelValues(statusLabel(err)).Inc()
}

// RecordFollowUpScheduled counts a newly scheduled task.
func RecordFollowUpScheduled() {
	DefaultMetrics.FollowUpsScheduled.Inc()
}

// RecordFollowUpAttempt counts a processed attempt.
func RecordFollowUpAttempt() {
	DefaultMetrics.FollowUpAttempts.Inc()
}

// RecordFollowUpCompleted counts a completion: significant or exhausted.
func RecordFollowUpCompleted(outcome string) {
	DefaultMetrics.FollowUpsCompleted.WithLabelValues(outcome).Inc()
}

// RecordSweep records the result of a sweep.
func RecordSweep(failed int, unixNow int64) {
	DefaultMetrics.SweepErrors.Add(float64(failed))
	DefaultMetrics.LastSuccessfulSweep.Set(float64(unixNow))
}

// RecordFollowUpsPurged counts purged tasks.
func RecordFollowUpsPurged(n int64) {
	DefaultMetrics.FollowUpsPurged.Add(float64(n))
}

// RecordVipUpdate records an outcome merge: created, updated, conflict or error.
func RecordVipUpdate(result string) {
	DefaultMetrics.VipUpdates.WithLabelValues(result).Inc()
}

// RecordPriceLookup records a provider call: ok, unavailable or error.
func RecordPriceLookup(status string, seconds float64) {
	DefaultMetrics.PriceLookups.WithLabelValues(status).Inc()
	DefaultMetrics.PriceLookupLatency.Observe(seconds)
}

// RecordPriceCache records a cache hit or miss.
func RecordPriceCache(hit bool) {
	if hit {
		DefaultMetrics.PriceCacheHits.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.PriceCacheHits.WithLabelValues("miss").Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
