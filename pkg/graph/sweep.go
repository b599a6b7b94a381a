package graph

import (
	"time"

	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// sweep evicts Error nodes past the error window, terminal Process nodes
// past their grace period, and Resource nodes past the resource window
// (spec §4.3 "Windowing"). Eviction cascades to incident edges.
func (g *Graph) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nowMs := now.UnixMilli()
	var dead []string

	for id, n := range g.nodes {
		switch n.Kind {
		case KindError:
			if nowMs-n.LastUpdateMs > g.windows.ErrorWindow.Milliseconds() {
				dead = append(dead, id)
			}
		case KindProcess:
			if n.Terminal && nowMs-n.ExitAtMs > g.windows.ProcessGrace.Milliseconds() {
				dead = append(dead, id)
			}
		case KindResource:
			if nowMs-n.LastUpdateMs > g.windows.ResourceWindow.Milliseconds() {
				dead = append(dead, id)
			}
		}
	}

	for _, id := range dead {
		g.removeNodeLocked(id)
	}
}

// removeNodeLocked deletes a node and every edge incident to it. Callers
// must hold g.mu for writing.
func (g *Graph) removeNodeLocked(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)
	metrics.NodesTotal.WithLabelValues(string(n.Kind)).Dec()
	metrics.GraphEvictionsTotal.WithLabelValues(string(n.Kind)).Inc()

	for k := range g.edges {
		if string(k.From) == id || string(k.To) == id {
			delete(g.edges, k)
			metrics.EdgesTotal.WithLabelValues(string(k.Kind)).Dec()
		}
	}
}
