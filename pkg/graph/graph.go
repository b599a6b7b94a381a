// Package graph implements the in-memory, time-windowed causal state graph
// (spec §3/§4.3, component C3) — the hardest part of the specification.
// It owns all nodes and edges; event producers only ever propose events via
// Apply, and readers observe a consistent snapshot via Snapshot.
package graph

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/causerr"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// StorageQDepthWaitThreshold is the queue-depth value at or above which a
// storage.qdepth sample derives a WaitsOn edge for its associated pid.
// Not specified numerically by the spec beyond "≥ threshold"; chosen as a
// conservative default representative of a saturated NVMe queue.
const StorageQDepthWaitThreshold = 32.0

// Windows bundles the sliding-window durations that govern eviction.
type Windows struct {
	ErrorWindow    time.Duration
	ResourceWindow time.Duration
	ProcessGrace   time.Duration
	SweepInterval  time.Duration
}

// Graph is the single logical causal state graph for one scope (agent/host
// or hub/cluster). It is safe for concurrent use: Apply takes the writer
// role; read operations take the reader role or operate on a Snapshot.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[edgeKey]*Edge

	tail         []bus.Event
	tailSeqStart int64

	windows Windows

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an empty Graph governed by the given windows.
func New(windows Windows) *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[edgeKey]*Edge),
		windows: windows,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Run starts the background windowing sweep (spec §4.3 "a background sweep
// runs every second"). It blocks until Stop is called; callers should run
// it in its own goroutine, mirroring the teacher reconciler's ticker+stopCh
// loop shape.
func (g *Graph) Run() {
	defer close(g.doneCh)

	interval := g.windows.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l := log.WithComponent("graph")
	for {
		select {
		case <-ticker.C:
			g.sweep(time.Now())
		case <-g.stopCh:
			l.Debug().Msg("graph sweep loop stopping")
			return
		}
	}
}

// Stop signals Run to exit and waits for it to finish.
func (g *Graph) Stop() {
	close(g.stopCh)
	<-g.doneCh
}

// Consume runs the graph's Apply loop against a bus, reading events until
// the channel is closed. This is the bus's single consumer (spec §4.1).
func (g *Graph) Consume(events <-chan bus.Event) {
	l := log.WithComponent("graph")
	for ev := range events {
		if err := g.Apply(ev); err != nil {
			l.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("event rejected")
		}
		metrics.EventsProcessedTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// Apply applies one event to the graph atomically. Derivation is pure and
// deterministic: repeat application of the same event is a no-op beyond
// refreshing timestamps (spec §3 invariant 6, §4.3 failure semantics), with
// one exception: a numeric transport.drop adds to the resource's drop_count
// each time it is applied.
func (g *Graph) Apply(ev bus.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.recordTail(ev)

	switch ev.Kind {
	case bus.KindProcessState:
		return g.applyProcessState(ev)
	case bus.KindComputeUtil:
		return g.applySampledResource(ev, "util_pct")
	case bus.KindComputeMem:
		return g.applySampledResource(ev, "mem_pct")
	case bus.KindTransportBW:
		return g.applySampledResource(ev, "bw")
	case bus.KindTransportDrop:
		return g.applyTransportDrop(ev)
	case bus.KindStorageIOPS:
		return g.applySampledResource(ev, "iops")
	case bus.KindStorageQDepth:
		return g.applyStorageQDepth(ev)
	case bus.KindErrorHW, bus.KindErrorNet, bus.KindTopoLinkDown:
		return g.applyError(ev)
	case bus.KindIntentRun:
		return g.applyIntentRun(ev)
	case bus.KindActionExec:
		return g.applyActionExec(ev)
	default:
		// Unknown kinds are counted as parse errors at the ingest boundary;
		// by the time an event reaches the graph its kind is trusted, so an
		// unrecognized kind here indicates a programming bug, not user input.
		return causerr.GraphContractViolation("unknown event kind", nil)
	}
}

func (g *Graph) upsertProcess(ev bus.Event) *Node {
	id := processNodeID(*ev.PID)
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{Kind: KindProcess, ID: id, PID: *ev.PID, Metadata: map[string]string{}, EventKinds: map[string]struct{}{}}
		g.nodes[id] = n
		metrics.NodesTotal.WithLabelValues(string(KindProcess)).Inc()
	}
	if ev.JobID != "" {
		n.JobID = ev.JobID
	}
	if ev.TsMs > n.LastUpdateMs {
		n.LastUpdateMs = ev.TsMs
	}
	n.EventKinds[string(ev.Kind)] = struct{}{}
	return n
}

func (g *Graph) upsertResource(entityID string, tsMs int64, kind bus.Kind) *Node {
	id := resourceNodeID(entityID)
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{Kind: KindResource, ID: id, Metadata: map[string]string{"class": resourceClassOf(entityID)}, EventKinds: map[string]struct{}{}}
		g.nodes[id] = n
		metrics.NodesTotal.WithLabelValues(string(KindResource)).Inc()
	}
	if tsMs > n.LastUpdateMs {
		n.LastUpdateMs = tsMs
	}
	n.EventKinds[string(kind)] = struct{}{}
	return n
}

// resourceClassOf infers a Resource's class from its entity id's naming
// convention (e.g. "gpu-0" -> "gpu"), per the class enumeration in spec §3.
// Probes are expected to name resources this way; an unrecognized prefix is
// stored verbatim so rules can still match on it exactly.
func resourceClassOf(entityID string) string {
	for _, class := range []string{"gpu", "npu", "nic", "link", "storage", "socket-endpoint"} {
		if strings.HasPrefix(entityID, class+"-") || entityID == class {
			return class
		}
	}
	return entityID
}

func (g *Graph) upsertEdge(from, to string, kind EdgeKind, tsMs int64) {
	e := Edge{From: endpointOf(from), To: endpointOf(to), Kind: kind, TsMs: tsMs}
	k := e.key()
	if existing, ok := g.edges[k]; ok {
		if tsMs > existing.TsMs {
			existing.TsMs = tsMs
		}
		return
	}
	g.edges[k] = &e
	metrics.EdgesTotal.WithLabelValues(string(kind)).Inc()
}

func (g *Graph) applyProcessState(ev bus.Event) error {
	if !ev.HasPID() {
		return causerr.GraphContractViolation("process.state without pid", nil)
	}
	n := g.upsertProcess(ev)

	switch bus.ProcessState(ev.Value) {
	case bus.ProcessStart, bus.ProcessRunning:
		// start and running are the same live state (spec §3 derivation
		// table groups them under one rule); a process observed starting
		// is already running as far as ps/scene analyzers are concerned.
		n.State = string(bus.ProcessRunning)
	case bus.ProcessExit, bus.ProcessZombie:
		n.State = string(ev.Value)
		if !n.Terminal {
			n.Terminal = true
			n.ExitAtMs = ev.TsMs
		}
	default:
		return causerr.ParseError("unrecognized process.state value: "+ev.Value, nil)
	}
	return nil
}

// applySampledResource handles compute.util, compute.mem, transport.bw,
// storage.iops: upsert the resource, store the numeric sample under
// metaKey, and upsert Consumes if a pid is present.
func (g *Graph) applySampledResource(ev bus.Event, metaKey string) error {
	val, numErr := parseNumeric(ev.Value)
	r := g.upsertResource(ev.EntityID, ev.TsMs, ev.Kind)
	if numErr == nil {
		r.Metadata[metaKey] = strconv.FormatFloat(val, 'f', -1, 64)
	} else {
		// Non-numeric sample for a kind that is normally numeric: store the
		// raw text so downstream rules can still match on it, but never
		// coerce to 0 (spec §4.3 numeric-parsing invariant).
		r.Metadata[metaKey+"_raw"] = ev.Value
	}

	if ev.HasPID() {
		p := g.upsertProcess(ev)
		g.upsertEdge(p.ID, r.ID, EdgeConsumes, ev.TsMs)
	}
	return nil
}

func (g *Graph) applyTransportDrop(ev bus.Event) error {
	r := g.upsertResource(ev.EntityID, ev.TsMs, ev.Kind)

	val, numErr := parseNumeric(ev.Value)
	if numErr != nil {
		// Non-numeric sentinel (IO_WAIT, STALL_*, ...): only a WaitsOn edge
		// is derived, and only if a pid is present. This never contributes
		// a numeric value to any resource metric (spec §8 boundary test).
		if ev.HasPID() {
			p := g.upsertProcess(ev)
			g.upsertEdge(p.ID, r.ID, EdgeWaitsOn, ev.TsMs)
		}
		return nil
	}

	prior, priorErr := parseNumeric(r.Metadata["drop_count"])
	if priorErr != nil {
		prior = 0
	}
	r.Metadata["drop_count"] = strconv.FormatFloat(prior+val, 'f', -1, 64)
	return nil
}

func (g *Graph) applyStorageQDepth(ev bus.Event) error {
	val, numErr := parseNumeric(ev.Value)
	r := g.upsertResource(ev.EntityID, ev.TsMs, ev.Kind)
	if numErr != nil {
		r.Metadata["qdepth_raw"] = ev.Value
		return nil
	}
	r.Metadata["qdepth"] = strconv.FormatFloat(val, 'f', -1, 64)

	if ev.HasPID() && val >= StorageQDepthWaitThreshold {
		p := g.upsertProcess(ev)
		g.upsertEdge(p.ID, r.ID, EdgeWaitsOn, ev.TsMs)
	}
	return nil
}

func (g *Graph) applyError(ev bus.Event) error {
	code := ev.Value
	id := errorNodeID(ev.EntityID, code)
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{Kind: KindError, ID: id, Metadata: map[string]string{"code": code}, FirstSeenMs: ev.TsMs, EventKinds: map[string]struct{}{}}
		g.nodes[id] = n
		metrics.NodesTotal.WithLabelValues(string(KindError)).Inc()
	}
	if ev.TsMs > n.LastUpdateMs {
		n.LastUpdateMs = ev.TsMs
	}
	n.EventKinds[string(ev.Kind)] = struct{}{}

	resourceID := resourceNodeID(ev.EntityID)
	if _, ok := g.nodes[resourceID]; ok {
		g.upsertEdge(resourceID, id, EdgeBlockedBy, ev.TsMs)
		for from := range g.consumersOf(resourceID) {
			g.upsertEdge(from, id, EdgeBlockedBy, ev.TsMs)
		}
	}
	return nil
}

// consumersOf returns the set of process node ids with an outgoing Consumes
// edge to resourceID.
func (g *Graph) consumersOf(resourceID string) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range g.edges {
		if k.Kind == EdgeConsumes && string(k.To) == resourceID {
			out[string(k.From)] = struct{}{}
		}
	}
	return out
}

func (g *Graph) applyIntentRun(ev bus.Event) error {
	if !ev.HasPID() {
		return causerr.GraphContractViolation("intent.run without pid", nil)
	}
	g.upsertProcess(ev)
	return nil
}

func (g *Graph) applyActionExec(ev bus.Event) error {
	if !ev.HasPID() {
		return nil
	}
	id := processNodeID(*ev.PID)
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	n.Metadata["last_action"] = ev.Value
	if ev.TsMs > n.LastUpdateMs {
		n.LastUpdateMs = ev.TsMs
	}
	return nil
}

// parseNumeric type-checks a value before any magnitude-based branch. It
// never coerces a non-numeric sentinel (IO_WAIT, STALL_*, XID_79, ...) to
// zero — that is a required invariant, not an optimisation (spec §4.3, §9).
func parseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	return strconv.ParseFloat(s, 64)
}
