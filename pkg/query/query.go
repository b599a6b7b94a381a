// Package query implements the query engine (spec §4.6, component C6):
// ps, why, and diag over a graph snapshot, with fixed-shape responses and
// never-an-error semantics for unknown pids.
package query

import (
	"sort"
	"strings"

	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
	"github.com/sentinelgraph/sentinel/pkg/scene"
)

// ProcessSummary is one entry in a ps response.
type ProcessSummary struct {
	PID       int      `json:"pid"`
	JobID     string   `json:"job_id,omitempty"`
	Resources []string `json:"resources"`
	State     string   `json:"state"`
}

// PSResponse is the fixed-shape response to ps.
type PSResponse struct {
	Processes []ProcessSummary `json:"processes"`
}

// PS lists all live Process nodes, sorted by pid ascending (spec §4.6).
func PS(snap graph.Snapshot) PSResponse {
	metrics.QueryRequestsTotal.WithLabelValues("ps", "ok").Inc()

	var procs []ProcessSummary
	for _, n := range snap.Nodes {
		if n.Kind != graph.KindProcess {
			continue
		}
		procs = append(procs, ProcessSummary{
			PID:       n.PID,
			JobID:     n.JobID,
			Resources: resourcesOf(snap, n.ID),
			State:     n.State,
		})
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return PSResponse{Processes: procs}
}

func resourcesOf(snap graph.Snapshot, procID string) []string {
	var out []string
	for _, e := range snap.Edges {
		if e.Kind != graph.EdgeConsumes || string(e.From) != procID {
			continue
		}
		if n, ok := snap.Nodes[string(e.To)]; ok {
			out = append(out, strings.TrimPrefix(n.ID, string(graph.KindResource)+":"))
		}
	}
	sort.Strings(out)
	return out
}

// CauseDTO is the wire shape of one graph.Cause entry.
type CauseDTO struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SceneDTO is the wire shape of a scene.Report.
type SceneDTO struct {
	SceneTag           string   `json:"scene_tag"`
	Severity           string   `json:"severity"`
	RootCausePrimary   string   `json:"root_cause_primary"`
	RootCauseSecondary []string `json:"root_cause_secondary,omitempty"`
	EvidenceNodeIDs    []string `json:"evidence_node_ids,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

// WhyResponse is the fixed-shape response to why(pid).
type WhyResponse struct {
	PID      int        `json:"pid"`
	NotFound bool       `json:"not_found"`
	Causes   []CauseDTO `json:"causes"`
	Scene    *SceneDTO  `json:"scene,omitempty"`
}

// Why performs the reverse-DFS causes walk plus the first matching scene
// report, if any (spec §4.6). An unknown pid is a structured empty
// response with not_found: true, never an error.
func Why(snap graph.Snapshot, pid int) WhyResponse {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DiagnosisLatencySeconds)

	if _, ok := snap.ProcessByPID(pid); !ok {
		metrics.QueryRequestsTotal.WithLabelValues("why", "not_found").Inc()
		return WhyResponse{PID: pid, NotFound: true}
	}
	metrics.QueryRequestsTotal.WithLabelValues("why", "ok").Inc()

	causes := snap.WhyPID(pid)
	dtoCauses := make([]CauseDTO, 0, len(causes))
	for _, c := range causes {
		dtoCauses = append(dtoCauses, CauseDTO{Kind: string(c.Kind), ID: c.ID, Message: c.Message})
	}

	resp := WhyResponse{PID: pid, Causes: dtoCauses}
	if report, ok := scene.Analyze(snap, pid); ok {
		resp.Scene = toSceneDTO(report)
	}
	return resp
}

func toSceneDTO(r scene.Report) *SceneDTO {
	return &SceneDTO{
		SceneTag:           string(r.SceneTag),
		Severity:           string(r.Severity),
		RootCausePrimary:   r.RootCausePrimary,
		RootCauseSecondary: r.RootCauseSecondary,
		EvidenceNodeIDs:    r.EvidenceNodeIDs,
		RecommendedActions: r.RecommendedActions,
	}
}

// AdjacencyEntry describes one edge in a diag packet's neighbourhood
// excerpt.
type AdjacencyEntry struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// DiagResponse is the fixed-shape response to diag(pid).
type DiagResponse struct {
	WhyResponse
	Adjacency        []AdjacencyEntry `json:"adjacency"`
	ReferencedEvents []string         `json:"referenced_event_kinds"`
}

// DiagRadius is the neighbourhood radius used by Diag (spec §4.6).
const DiagRadius = 2

// Diag packages the why result plus a compact adjacency excerpt at radius
// 2 around the subject, and the set of event kinds referenced — intended
// for an external LLM caller (spec §4.6).
func Diag(snap graph.Snapshot, pid int) DiagResponse {
	why := Why(snap, pid)
	if why.NotFound {
		return DiagResponse{WhyResponse: why}
	}

	procID := processNodeIDOf(snap, pid)
	nodes := neighbourhood(snap, procID, DiagRadius)

	var adj []AdjacencyEntry
	for _, e := range snap.Edges {
		from := string(e.From)
		to := string(e.To)
		if _, ok := nodes[from]; !ok {
			continue
		}
		if _, ok := nodes[to]; !ok {
			continue
		}
		adj = append(adj, AdjacencyEntry{From: from, To: to, Kind: string(e.Kind)})
	}

	kindsSeen := map[string]struct{}{}
	for id := range nodes {
		n, ok := snap.Nodes[id]
		if !ok {
			continue
		}
		for k := range n.EventKinds {
			kindsSeen[k] = struct{}{}
		}
	}

	var kinds []string
	for k := range kindsSeen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return DiagResponse{WhyResponse: why, Adjacency: adj, ReferencedEvents: kinds}
}

func processNodeIDOf(snap graph.Snapshot, pid int) string {
	n, _ := snap.ProcessByPID(pid)
	return n.ID
}

// neighbourhood returns the set of node ids reachable from start within
// radius hops, following edges in either direction.
func neighbourhood(snap graph.Snapshot, start string, radius int) map[string]struct{} {
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	for i := 0; i < radius; i++ {
		var next []string
		for _, id := range frontier {
			for _, e := range snap.Edges {
				from, to := string(e.From), string(e.To)
				if from == id {
					if _, ok := visited[to]; !ok {
						visited[to] = struct{}{}
						next = append(next, to)
					}
				}
				if to == id {
					if _, ok := visited[from]; !ok {
						visited[from] = struct{}{}
						next = append(next, from)
					}
				}
			}
		}
		frontier = next
	}
	return visited
}
