package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
)

func TestCollector_StopsOnContextCancel(t *testing.T) {
	g := graph.New(graph.Windows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   time.Second,
		SweepInterval:  time.Second,
	})
	go g.Run()
	defer g.Stop()

	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: intPtr(1), Value: "start"}))

	c := agent.NewCollector(g)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after context cancellation")
	}
}

func TestCollector_StopMethodStopsRun(t *testing.T) {
	g := graph.New(graph.Windows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   time.Second,
		SweepInterval:  time.Second,
	})
	go g.Run()
	defer g.Stop()

	c := agent.NewCollector(g)
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after Stop()")
	}
}
