package graph

// Snapshot is a logically consistent, read-only clone of the graph's nodes
// and edges at one instant (spec §3 "Snapshot", §4.3 "Concurrency"). Rule
// matching and queries operate on a Snapshot rather than holding the
// graph's lock across an IPC round trip.
type Snapshot struct {
	Nodes map[string]Node
	Edges []Edge
}

// Snapshot clones the current graph state under a reader lease.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n.clone()
	}
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, *e)
	}
	return Snapshot{Nodes: nodes, Edges: edges}
}

// outgoing returns edges of the given kinds whose From endpoint is nodeID,
// in the snapshot's edge list. Order is not guaranteed across calls, so
// callers that need determinism (root-cause walk) sort by a stable key.
func (s Snapshot) outgoing(nodeID string, kinds ...EdgeKind) []Edge {
	want := make(map[EdgeKind]struct{}, len(kinds))
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	var out []Edge
	for _, e := range s.Edges {
		if string(e.From) != nodeID {
			continue
		}
		if _, ok := want[e.Kind]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ProcessByPID returns the Process node for pid, if live.
func (s Snapshot) ProcessByPID(pid int) (Node, bool) {
	n, ok := s.Nodes[processNodeID(pid)]
	return n, ok
}
