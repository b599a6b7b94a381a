package query_test

import (
	"testing"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/query"
	"github.com/stretchr/testify/require"
)

func pidPtr(pid int) *int { return &pid }

func testWindows() graph.Windows {
	return graph.Windows{
		ErrorWindow:    300_000_000_000,
		ResourceWindow: 300_000_000_000,
		ProcessGrace:   1_000_000_000,
		SweepInterval:  1_000_000_000,
	}
}

func TestPS_SortedByPID(t *testing.T) {
	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(200), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))

	resp := query.PS(g.Snapshot())
	require.Len(t, resp.Processes, 2)
	require.Equal(t, 100, resp.Processes[0].PID)
	require.Equal(t, 200, resp.Processes[1].PID)
	require.Equal(t, []string{"gpu-0"}, resp.Processes[0].Resources)
}

func TestWhy_UnknownPidNotFound(t *testing.T) {
	g := graph.New(testWindows())
	resp := query.Why(g.Snapshot(), 999)
	require.True(t, resp.NotFound)
	require.Empty(t, resp.Causes)
	require.Nil(t, resp.Scene)
}

func TestWhy_RootCauseAndScene(t *testing.T) {
	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	resp := query.Why(g.Snapshot(), 100)
	require.False(t, resp.NotFound)
	require.Len(t, resp.Causes, 1)
	require.Contains(t, resp.Causes[0].Message, "XID_79")
	require.NotNil(t, resp.Scene)
	require.Equal(t, "GpuError", resp.Scene.SceneTag)
}

func TestDiag_IncludesAdjacencyAndReferencedKinds(t *testing.T) {
	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))

	resp := query.Diag(g.Snapshot(), 100)
	require.False(t, resp.NotFound)
	require.NotEmpty(t, resp.Adjacency)
	require.Contains(t, resp.ReferencedEvents, string(bus.KindComputeUtil))
}
