// Package metrics exposes the daemon's Prometheus metrics: graph size by
// entity/edge kind, events processed by kind, error-taxonomy counters, and
// the two headline histograms (process wait time, diagnosis latency).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph metrics.
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_graph_nodes_total",
			Help: "Current number of live graph nodes by entity kind",
		},
		[]string{"kind"},
	)

	EdgesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_graph_edges_total",
			Help: "Current number of live graph edges by edge kind",
		},
		[]string{"kind"},
	)

	GraphEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_graph_evictions_total",
			Help: "Total nodes evicted by the windowing sweep, by entity kind",
		},
		[]string{"kind"},
	)

	// Event bus / ingest metrics.
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_events_processed_total",
			Help: "Total events applied to the graph by event kind",
		},
		[]string{"kind"},
	)

	EventsParseErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_parse_errors_total",
			Help: "Total probe lines that failed to parse into an event",
		},
	)

	BusQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_bus_queue_depth",
			Help: "Current number of buffered events on the event bus",
		},
	)

	BusBackpressureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_bus_backpressure_total",
			Help: "Total publishes that blocked because the bus was at capacity",
		},
	)

	ProbeRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_probe_restarts_total",
			Help: "Total probe process restarts by probe name",
		},
		[]string{"probe"},
	)

	// Rule / scene metrics.
	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rule_matches_total",
			Help: "Total rule matches by rule name",
		},
		[]string{"rule"},
	)

	SceneReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scene_reports_total",
			Help: "Total scene reports produced by scene tag",
		},
		[]string{"scene"},
	)

	// Query engine metrics.
	ProcessWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_process_wait_seconds",
			Help:    "Observed duration a process spends with an active WaitsOn edge",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	DiagnosisLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_diagnosis_latency_seconds",
			Help:    "Time to produce a why/diag response, end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_query_requests_total",
			Help: "Total query-engine requests by operation and result",
		},
		[]string{"op", "result"},
	)

	// Action dispatcher metrics.
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_actions_total",
			Help: "Total dispatched actions by op and result",
		},
		[]string{"op", "result"},
	)

	// Hub metrics.
	HubSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_hub_sessions_active",
			Help: "Current number of host subgraphs held by the hub (hosts whose session has not timed out)",
		},
	)

	HubSessionTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_hub_session_timeouts_total",
			Help: "Total agent sessions cleared after the session timeout",
		},
	)

	// Error taxonomy counters (spec §7), one series per kind.
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_errors_total",
			Help: "Total internal errors by taxonomy kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		EdgesTotal,
		GraphEvictionsTotal,
		EventsProcessedTotal,
		EventsParseErrorsTotal,
		BusQueueDepth,
		BusBackpressureTotal,
		ProbeRestartsTotal,
		RuleMatchesTotal,
		SceneReportsTotal,
		ProcessWaitSeconds,
		DiagnosisLatencySeconds,
		QueryRequestsTotal,
		ActionsTotal,
		HubSessionsActive,
		HubSessionTimeoutsTotal,
		ErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler exposed at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
