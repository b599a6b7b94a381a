// Package hub implements hub aggregation (spec §4.7, component C7): the
// hub runs the same graph derivation and scene analyzers as the agent, but
// keyed per host, and unions the per-host subgraphs to answer cluster-wide
// queries. The rule set given to the hub is held but not consulted by Why
// or Diag.
// A dropped agent session clears its owning host's subgraph after a fixed
// timeout rather than blocking any other host.
package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
	"github.com/sentinelgraph/sentinel/pkg/query"
	"github.com/sentinelgraph/sentinel/pkg/rules"
)

// Hub holds one graph.Graph per connected host and answers cluster-scope
// queries by fanning a request out across them. Unlike the agent, which
// owns a single graph, the hub's source of truth is the union of live
// agent streams (spec §1 Non-goals: "no distributed consensus").
type Hub struct {
	mu             sync.RWMutex
	windows        graph.Windows
	sessionTimeout time.Duration
	rules          []rules.Rule

	hostGraphs map[string]*graph.Graph
	lastSeen   map[string]time.Time
	sessions   map[string]*Session

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an empty Hub. windows govern every per-host graph's own
// sweep (the same eviction rules apply at cluster scope); sessionTimeout
// is how long a host's subgraph survives after its session drops.
func New(windows graph.Windows, sessionTimeout time.Duration, ruleSet []rules.Rule) *Hub {
	return &Hub{
		windows:        windows,
		sessionTimeout: sessionTimeout,
		rules:          ruleSet,
		hostGraphs:     make(map[string]*graph.Graph),
		lastSeen:       make(map[string]time.Time),
		sessions:       make(map[string]*Session),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// graphFor returns the per-host graph for hostID, creating and starting
// its sweep loop on first use, and refreshes the host's last-seen time.
func (h *Hub) graphFor(hostID string) *graph.Graph {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.hostGraphs[hostID]
	if !ok {
		g = graph.New(h.windows)
		h.hostGraphs[hostID] = g
		go g.Run()
		metrics.HubSessionsActive.Set(float64(len(h.hostGraphs)))
		log.WithHostID(hostID).Info().Msg("new host subgraph created")
	}
	h.lastSeen[hostID] = time.Now()
	return g
}

// ApplyEvent applies ev to hostID's subgraph (spec §4.7: "The hub applies
// the same derivation rules").
func (h *Hub) ApplyEvent(hostID string, ev bus.Event) error {
	ev.HostID = hostID
	return h.graphFor(hostID).Apply(ev)
}

// RegisterSession records the live duplex session for hostID, used for
// command fan-out (spec §4.7 "forwards the intent back over the same
// session").
func (h *Hub) RegisterSession(hostID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[hostID] = s
}

// DropSession removes hostID's session handle. Its subgraph is left in
// place; the timeout sweep clears it (spec §4.7).
func (h *Hub) DropSession(hostID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, hostID)
}

// hostIDs returns every known host id, sorted for deterministic fan-out
// order.
func (h *Hub) hostIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.hostGraphs))
	for id := range h.hostGraphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) snapshotOf(hostID string) (graph.Snapshot, bool) {
	h.mu.RLock()
	g, ok := h.hostGraphs[hostID]
	h.mu.RUnlock()
	if !ok {
		return graph.Snapshot{}, false
	}
	return g.Snapshot(), true
}

// HostProcess is one ps entry, cluster-scoped with its owning host id.
type HostProcess struct {
	HostID string `json:"host_id"`
	query.ProcessSummary
}

// PSResponse is the cluster-wide ps response: every live process across
// every connected host.
type PSResponse struct {
	Processes []HostProcess `json:"processes"`
}

// PS fans ps out across every connected host's subgraph (spec §4.7).
func (h *Hub) PS() PSResponse {
	var out PSResponse
	for _, hostID := range h.hostIDs() {
		snap, ok := h.snapshotOf(hostID)
		if !ok {
			continue
		}
		for _, p := range query.PS(snap).Processes {
			out.Processes = append(out.Processes, HostProcess{HostID: hostID, ProcessSummary: p})
		}
	}
	return out
}

// HostWhyResponse is why's cluster-scoped response, naming the host that
// owns the subject pid.
type HostWhyResponse struct {
	HostID string `json:"host_id,omitempty"`
	query.WhyResponse
}

// Why looks up which connected host owns pid and answers why against that
// host's subgraph (spec §4.7: "the hub looks up the host owning the
// target process"). If no connected host currently has a live process
// with that pid, the response is a structured not_found, matching the
// query engine's own unknown-pid contract (spec §4.6/§7 NotFound).
func (h *Hub) Why(pid int) HostWhyResponse {
	for _, hostID := range h.hostIDs() {
		snap, ok := h.snapshotOf(hostID)
		if !ok {
			continue
		}
		if _, ok := snap.ProcessByPID(pid); ok {
			return HostWhyResponse{HostID: hostID, WhyResponse: query.Why(snap, pid)}
		}
	}
	return HostWhyResponse{WhyResponse: query.WhyResponse{PID: pid, NotFound: true}}
}

// HostDiagResponse is diag's cluster-scoped response.
type HostDiagResponse struct {
	HostID string `json:"host_id,omitempty"`
	query.DiagResponse
}

// Diag is Why's diag counterpart, scoped to the owning host.
func (h *Hub) Diag(pid int) HostDiagResponse {
	for _, hostID := range h.hostIDs() {
		snap, ok := h.snapshotOf(hostID)
		if !ok {
			continue
		}
		if _, ok := snap.ProcessByPID(pid); ok {
			return HostDiagResponse{HostID: hostID, DiagResponse: query.Diag(snap, pid)}
		}
	}
	return HostDiagResponse{DiagResponse: query.DiagResponse{WhyResponse: query.WhyResponse{PID: pid, NotFound: true}}}
}

// FixResult is the outcome of dispatching a fix intent via the hub.
type FixResult struct {
	HostID   string `json:"host_id,omitempty"`
	Target   int    `json:"target"`
	Op       string `json:"op"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// Fix resolves the host owning target and forwards the intent over that
// host's session (spec §4.7). The hub does not itself execute the
// action — it only forwards; the agent's own action dispatcher reports
// the outcome by publishing an action.exec event the hub later observes.
func (h *Hub) Fix(target int, op string) FixResult {
	var owner string
	for _, hostID := range h.hostIDs() {
		snap, ok := h.snapshotOf(hostID)
		if !ok {
			continue
		}
		if _, ok := snap.ProcessByPID(target); ok {
			owner = hostID
			break
		}
	}
	if owner == "" {
		return FixResult{Target: target, Op: op, Status: "not_found", Message: "no connected host owns this pid"}
	}

	h.mu.RLock()
	session, ok := h.sessions[owner]
	h.mu.RUnlock()
	if !ok {
		return FixResult{HostID: owner, Target: target, Op: op, Status: "session_unavailable"}
	}

	if err := session.SendIntent(op, target, nil); err != nil {
		return FixResult{HostID: owner, Target: target, Op: op, Status: "send_failed", Message: err.Error()}
	}
	return FixResult{HostID: owner, Target: target, Op: op, Status: "dispatched"}
}

// Run starts the session-timeout sweep loop (spec §4.7: "dropped sessions
// clear the owning host's subgraph after a fixed timeout, default 60s").
// It blocks until Stop is called.
func (h *Hub) Run() {
	defer close(h.doneCh)

	l := log.WithComponent("hub")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepStaleHosts(time.Now())
		case <-h.stopCh:
			l.Debug().Msg("hub sweep loop stopping")
			return
		}
	}
}

// Stop signals Run to exit and waits for it to finish, also stopping
// every per-host graph's own sweep loop.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range h.hostGraphs {
		g.Stop()
	}
}

func (h *Hub) sweepStaleHosts(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for hostID, last := range h.lastSeen {
		if _, hasSession := h.sessions[hostID]; hasSession {
			continue
		}
		if now.Sub(last) <= h.sessionTimeout {
			continue
		}
		if g, ok := h.hostGraphs[hostID]; ok {
			g.Stop()
		}
		delete(h.hostGraphs, hostID)
		delete(h.lastSeen, hostID)
		metrics.HubSessionTimeoutsTotal.Inc()
		metrics.HubSessionsActive.Set(float64(len(h.hostGraphs)))
		log.WithHostID(hostID).Info().Msg("cleared stale host subgraph after session timeout")
	}
}
