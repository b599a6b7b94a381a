/*
Package metrics provides Prometheus metrics collection and exposition for the
causal-diagnostics daemon.

The metrics package defines and registers every daemon metric using the
Prometheus client library: live graph size by entity/edge kind, events
processed by kind, error-taxonomy counters, rule/scene counters, and the two
headline histograms, process wait time and diagnosis latency (spec §6's
canonical metrics endpoint). Metrics are exposed via an HTTP endpoint for
scraping by Prometheus servers, and a parallel readiness/liveness surface
tracks the up/down state of the bus, graph sweeper, and ingest adapter.

# Metrics Catalog

Graph metrics:

	sentinel_graph_nodes_total{kind}       - Gauge, live nodes by entity kind
	sentinel_graph_edges_total{kind}       - Gauge, live edges by edge kind
	sentinel_graph_evictions_total{kind}   - Counter, windowing-sweep evictions

Bus / ingest metrics:

	sentinel_events_processed_total{kind}      - Counter, events applied by kind
	sentinel_events_parse_errors_total         - Counter, unparseable probe lines
	sentinel_bus_queue_depth                   - Gauge, buffered events
	sentinel_bus_backpressure_total            - Counter, publishes that blocked
	sentinel_probe_restarts_total{probe}       - Counter, probe restarts

Rule / scene metrics:

	sentinel_rule_matches_total{rule}    - Counter
	sentinel_scene_reports_total{scene}  - Counter

Query engine metrics:

	sentinel_process_wait_seconds       - Histogram
	sentinel_diagnosis_latency_seconds  - Histogram
	sentinel_query_requests_total{op,result} - Counter

Action dispatcher metrics:

	sentinel_actions_total{op,result} - Counter

Hub metrics:

	sentinel_hub_sessions_active         - Gauge
	sentinel_hub_session_timeouts_total  - Counter

Error taxonomy:

	sentinel_errors_total{kind} - Counter, one series per pkg/causerr kind

# Usage

	import "github.com/sentinelgraph/sentinel/pkg/metrics"

	metrics.NodesTotal.WithLabelValues("Process").Set(12)
	metrics.EventsProcessedTotal.WithLabelValues("compute.util").Inc()

	timer := metrics.NewTimer()
	// ... answer a why() query ...
	timer.ObserveDuration(metrics.DiagnosisLatencySeconds)

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

All metrics are package-level variables registered in init() via
MustRegister, exactly as the teacher's metrics package does; no runtime
registration is required by callers. Label sets are kept low-cardinality
(entity/edge/event kind, rule name, scene tag, op) — never pid or entity id.
*/
package metrics
