package hub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/hub"
)

func pidPtr(pid int) *int { return &pid }

func testWindows() graph.Windows {
	return graph.Windows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   time.Second,
		SweepInterval:  time.Second,
	}
}

func TestHub_PSAggregatesAcrossHosts(t *testing.T) {
	h := hub.New(testWindows(), 60*time.Second, nil)

	require.NoError(t, h.ApplyEvent("host-a", bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))
	require.NoError(t, h.ApplyEvent("host-b", bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(100), Value: "start"}))

	resp := h.PS()
	require.Len(t, resp.Processes, 2)

	hosts := map[string]bool{}
	for _, p := range resp.Processes {
		hosts[p.HostID] = true
	}
	require.True(t, hosts["host-a"])
	require.True(t, hosts["host-b"])
}

func TestHub_WhyResolvesOwningHost(t *testing.T) {
	h := hub.New(testWindows(), 60*time.Second, nil)
	require.NoError(t, h.ApplyEvent("host-a", bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(200), Value: "start"}))
	require.NoError(t, h.ApplyEvent("host-a", bus.Event{TsMs: 2, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))
	require.NoError(t, h.ApplyEvent("host-a", bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(200), Value: "80"}))

	resp := h.Why(200)
	require.Equal(t, "host-a", resp.HostID)
	require.False(t, resp.NotFound)
}

func TestHub_WhyUnknownPIDIsNotFound(t *testing.T) {
	h := hub.New(testWindows(), 60*time.Second, nil)
	resp := h.Why(999)
	require.True(t, resp.NotFound)
	require.Empty(t, resp.HostID)
}

func TestHub_FixUnknownTargetReportsNotFound(t *testing.T) {
	h := hub.New(testWindows(), 60*time.Second, nil)
	res := h.Fix(999, "kill")
	require.Equal(t, "not_found", res.Status)
}
