package graph

import (
	"testing"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/stretchr/testify/require"
)

func pidPtr(pid int) *int { return &pid }

func testWindows() Windows {
	return Windows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   1 * time.Second,
		SweepInterval:  time.Second,
	}
}

// Scenario 1 (spec §8): basic consumption.
func TestApply_BasicConsumption(t *testing.T) {
	g := New(testWindows())

	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))

	snap := g.Snapshot()
	proc, ok := snap.ProcessByPID(100)
	require.True(t, ok)
	require.Equal(t, "running", proc.State)

	edges := snap.outgoing(proc.ID, EdgeConsumes)
	require.Len(t, edges, 1)
	require.Equal(t, EdgeEndpoint(resourceNodeID("gpu-0")), edges[0].To)

	causes := snap.WhyPID(100)
	require.Empty(t, causes)
}

// Scenario 2: root-cause chain.
func TestApply_RootCauseChain(t *testing.T) {
	g := New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	snap := g.Snapshot()
	causes := snap.WhyPID(100)
	require.Len(t, causes, 1)
	require.Equal(t, CauseError, causes[0].Kind)
	require.Equal(t, errorNodeID("gpu-0", "XID_79"), causes[0].ID)
	require.Contains(t, causes[0].Message, "XID_79")
}

// Scenario 4: window eviction.
func TestSweep_ErrorWindowEviction(t *testing.T) {
	g := New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 0, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	snap := g.Snapshot()
	_, ok := snap.Nodes[errorNodeID("gpu-0", "XID_79")]
	require.True(t, ok)

	future := time.UnixMilli(0).Add(g.windows.ErrorWindow + time.Second)
	g.sweep(future)

	snap = g.Snapshot()
	_, ok = snap.Nodes[errorNodeID("gpu-0", "XID_79")]
	require.False(t, ok)
}

// Boundary behavior: transport.drop="IO_WAIT" never contributes a numeric
// utilisation 0 to any resource metric.
func TestApply_TransportDropSentinelNeverCoercedToZero(t *testing.T) {
	g := New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(200), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindTransportDrop, EntityID: "nic-0", PID: pidPtr(200), Value: "IO_WAIT"}))

	snap := g.Snapshot()
	resource := snap.Nodes[resourceNodeID("nic-0")]
	_, hasDropCount := resource.Metadata["drop_count"]
	require.False(t, hasDropCount, "IO_WAIT must never populate drop_count")

	proc, _ := snap.ProcessByPID(200)
	edges := snap.outgoing(proc.ID, EdgeWaitsOn)
	require.Len(t, edges, 1)
}

func TestApply_TransportDropNumericIncrementsCounter(t *testing.T) {
	g := New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindTransportDrop, EntityID: "nic-0", Value: "12"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindTransportDrop, EntityID: "nic-0", Value: "12"}))

	snap := g.Snapshot()
	resource := snap.Nodes[resourceNodeID("nic-0")]
	require.Equal(t, "24", resource.Metadata["drop_count"])
}

// Universal invariant: process exit + one grace period removes the node
// and its outgoing edges.
func TestApply_ProcessExitGraceRemoval(t *testing.T) {
	g := New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(300), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(300), Value: "50"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindProcessState, PID: pidPtr(300), Value: "exit"}))

	g.sweep(time.UnixMilli(3 + g.windows.ProcessGrace.Milliseconds() + 1))

	snap := g.Snapshot()
	_, ok := snap.ProcessByPID(300)
	require.False(t, ok)
	edges := snap.outgoing(processNodeID(300), EdgeConsumes)
	require.Empty(t, edges)
}

// Idempotence: applying the same event twice yields the same graph state.
func TestApply_Idempotent(t *testing.T) {
	g := New(testWindows())
	ev := bus.Event{TsMs: 1, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}
	require.NoError(t, g.Apply(ev))
	require.NoError(t, g.Apply(ev))

	snap := g.Snapshot()
	require.Len(t, snap.Edges, 1)
}

func TestApply_ProcessStateRequiresPID(t *testing.T) {
	g := New(testWindows())
	err := g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, Value: "start"})
	require.Error(t, err)
}
