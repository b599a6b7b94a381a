package scene_test

import (
	"testing"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/scene"
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

// Scenario 3 (spec §8): stall vs preprocessing.
func TestWorkloadStalled_ThenProcessBlockedOnceWaiting(t *testing.T) {
	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(200), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(200), Value: "0"}))

	snap := g.Snapshot()
	report, ok := scene.Analyze(snap, 200)
	require.True(t, ok)
	require.Equal(t, scene.TagWorkloadStalled, report.SceneTag)

	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindTransportDrop, EntityID: "nic-0", PID: pidPtr(200), Value: "IO_WAIT"}))

	snap = g.Snapshot()
	report, ok = scene.Analyze(snap, 200)
	require.True(t, ok)
	require.NotEqual(t, scene.TagWorkloadStalled, report.SceneTag)
	require.Equal(t, scene.TagProcessBlocked, report.SceneTag)
	require.Contains(t, report.EvidenceNodeIDs, "Resource:nic-0")
}

func TestGpuError(t *testing.T) {
	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(100), Value: "80"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	snap := g.Snapshot()
	report, ok := scene.Analyze(snap, 100)
	require.True(t, ok)
	require.Equal(t, scene.TagGpuError, report.SceneTag)
}

func TestNoReportForUnknownPID(t *testing.T) {
	g := graph.New(testWindows())
	snap := g.Snapshot()
	_, ok := scene.Analyze(snap, 999)
	require.False(t, ok)
}
