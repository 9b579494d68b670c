// Package metrics expone contadores Prometheus del pipeline de matching.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stray_match"

// Registry propio para no mezclar con el default global.
var Registry = prometheus.NewRegistry() //nolint:gochecknoglobals

var (
	factory = promauto.With(Registry) //nolint:gochecknoglobals

	pipelineRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Orchestrator runs by terminal stage.",
	}, []string{"trigger", "stage"})

	candidatesSearched = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidates returned by candidate search, by path.",
	}, []string{"kind", "path"})

	searchFallbacks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidate_search_fallbacks_total",
		Help:      "Times the spatial search degraded to the bounded scan.",
	}, []string{"kind", "cause"})

	preFilterSkips = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prefilter_skips_total",
		Help:      "Candidate pairs rejected before analysis.",
	}, []string{"reason"})

	analyzerCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyzer_calls_total",
		Help:      "Vision comparison attempts by outcome.",
	}, []string{"outcome"})

	analyzerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analyzer_latency_seconds",
		Help:      "Vision comparison latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	})

	matchesAccepted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Match results by store outcome.",
	}, []string{"outcome"})

	rateLimitDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limit checks by tier and decision.",
	}, []string{"tier", "allowed"})

	rateLimitFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_check_failures_total",
		Help:      "Usage count queries that exhausted their retries (fail closed).",
	})

	notifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Push notifications by kind and outcome.",
	}, []string{"kind", "outcome"})

	backgroundTasks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "background_tasks_total",
		Help:      "Best-effort tasks by name and outcome.",
	}, []string{"task", "outcome"})

	httpRequests = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() { //nolint:gochecknoinits
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler sirve /metrics sobre el registry propio.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordPipelineRun(trigger, stage string) {
	pipelineRuns.WithLabelValues(trigger, stage).Inc()
}

func RecordCandidates(kind, path string, n int) {
	candidatesSearched.WithLabelValues(kind, path).Add(float64(n))
}

func RecordSearchFallback(kind, cause string) {
	searchFallbacks.WithLabelValues(kind, cause).Inc()
}

func RecordPreFilterSkip(reason string) {
	preFilterSkips.WithLabelValues(reason).Inc()
}

func RecordAnalyzerCall(outcome string, seconds float64) {
	analyzerCalls.WithLabelValues(outcome).Inc()
	analyzerLatency.Observe(seconds)
}

func RecordMatch(outcome string) {
	matchesAccepted.WithLabelValues(outcome).Inc()
}

func RecordRateLimitDecision(tier string, allowed bool) {
	rateLimitDecisions.WithLabelValues(tier, strconv.FormatBool(allowed)).Inc()
}

func RecordRateLimitCheckFailure() {
	rateLimitFailures.Inc()
}

func RecordNotification(kind, outcome string) {
	notifications.WithLabelValues(kind, outcome).Inc()
}

func RecordBackgroundTask(task, outcome string) {
	backgroundTasks.WithLabelValues(task, outcome).Inc()
}

func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
