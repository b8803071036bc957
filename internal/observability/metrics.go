package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indoormap",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indoormap",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indoormap",
		Name:      "http_inflight_requests",
		Help:      "Requests currently being served.",
	})

	// EngineWrites counts summary writes issued by the consistency engine.
	EngineWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indoormap",
		Name:      "engine_summary_writes_total",
		Help:      "Summary array and reference writes by relation and op.",
	}, []string{"relation", "op"})

	EngineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indoormap",
		Name:      "engine_failures_total",
		Help:      "Tracked engine mutations that failed part way.",
	}, []string{"kind", "op"})

	TilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indoormap",
		Name:      "tiles_written_total",
		Help:      "PNG tiles written to tile storage.",
	})

	PyramidDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "indoormap",
		Name:      "tile_pyramid_duration_seconds",
		Help:      "Wall time of a full pyramid build.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	DriftFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indoormap",
		Name:      "reconcile_drift_fixes_total",
		Help:      "Summary copies repaired by the reconciler.",
	}, []string{"relation", "kind"})

	PendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indoormap",
		Name:      "reconcile_pending_tasks",
		Help:      "Reconcile tasks waiting for replay at the last run.",
	})
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
