package agent_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/hub"
)

// TestRunHubClient_ForwardsFoldedEventsOnly exercises the end-to-end
// agent -> hub duplex session: process.state and error.hw are
// edge-folded and reach the hub, while compute.util (a per-sample
// utilisation metric) is filtered out at the forwarding client and never
// arrives (spec §4.7: "not per-sample utilisation").
func TestRunHubClient_ForwardsFoldedEventsOnly(t *testing.T) {
	windows := graph.Windows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   time.Second,
		SweepInterval:  time.Second,
	}
	h := hub.New(windows, 60*time.Second, nil)
	go h.Run()
	defer h.Stop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.Serve(conn)
	}()

	cfg := config.Default()
	cfg.RuleDir = ""
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit.log")
	cfg.HubAddr = ln.Addr().String()

	a, err := agent.New(cfg, "host-x")
	require.NoError(t, err)

	go a.Graph().Run()
	defer a.Graph().Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.RunHubClient(ctx)

	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: intPtr(500), Value: "start"}))
	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: intPtr(500), Value: "42"}))

	require.Eventually(t, func() bool {
		resp := h.PS()
		for _, p := range resp.Processes {
			if p.HostID == "host-x" && p.PID == 500 {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond, "process.state should reach the hub")

	resp := h.PS()
	var found bool
	for _, p := range resp.Processes {
		if p.HostID == "host-x" && p.PID == 500 {
			found = true
			require.Empty(t, p.Resources, "compute.util is a per-sample metric and must not be forwarded")
		}
	}
	require.True(t, found)
}
