package agent

import (
	"context"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// collectInterval is the periodic metrics sweep period. Graph node/edge
// gauges (pkg/metrics.NodesTotal/EdgesTotal) are also adjusted
// incrementally by Apply and by the window sweep; this collector re-sets
// them from a full snapshot on every tick.
const collectInterval = 10 * time.Second

// Collector periodically re-sets the graph node/edge gauges by kind from a
// graph snapshot (spec §6 canonical metrics endpoint). A kind with no nodes
// or edges in the snapshot keeps its previous gauge value.
type Collector struct {
	g      *graph.Graph
	stopCh chan struct{}
}

// NewCollector creates a Collector over g.
func NewCollector(g *graph.Graph) *Collector {
	return &Collector{g: g, stopCh: make(chan struct{})}
}

// Run collects immediately and then on every tick until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	c.collect()

	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// Stop signals Run to exit, for callers not driving it via ctx.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.g.Snapshot()

	nodeCounts := map[string]int{}
	for _, n := range snap.Nodes {
		nodeCounts[string(n.Kind)]++
	}
	for kind, count := range nodeCounts {
		metrics.NodesTotal.WithLabelValues(kind).Set(float64(count))
	}

	edgeCounts := map[string]int{}
	for _, e := range snap.Edges {
		edgeCounts[string(e.Kind)]++
	}
	for kind, count := range edgeCounts {
		metrics.EdgesTotal.WithLabelValues(kind).Set(float64(count))
	}
}
