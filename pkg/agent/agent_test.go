package agent_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/rules"
)

func newTestAgent(t *testing.T) *agent.Agent {
	t.Helper()
	cfg := config.Default()
	cfg.RuleDir = ""
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit.log")
	cfg.IPCSocketPath = ""
	cfg.HubAddr = ""

	a, err := agent.New(cfg, "test-host")
	require.NoError(t, err)
	return a
}

func intPtr(i int) *int { return &i }

func TestAgent_PSAndWhyOverBasicConsumption(t *testing.T) {
	a := newTestAgent(t)
	go a.Graph().Run()
	defer a.Graph().Stop()

	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: intPtr(100), Value: "start"}))
	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: intPtr(100), Value: "80"}))

	ps := a.PS()
	require.Len(t, ps.Processes, 1)
	require.Equal(t, 100, ps.Processes[0].PID)
	require.Equal(t, []string{"gpu-0"}, ps.Processes[0].Resources)

	why := a.Why(100)
	require.False(t, why.NotFound)
	require.Empty(t, why.Causes)
	require.Nil(t, why.Scene)
}

func TestAgent_WhyOverlaysWinningRuleSolutionSteps(t *testing.T) {
	a := newTestAgent(t)
	go a.Graph().Run()
	defer a.Graph().Stop()

	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: intPtr(200), Value: "start"}))
	require.NoError(t, a.Graph().Apply(bus.Event{TsMs: 2, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	a.SetRulesForTest([]rules.Rule{
		{
			Name:     "gpu-xid-79",
			Scene:    "GpuError",
			Priority: 100,
			Conditions: rules.Condition{
				Event: &rules.EventCondition{Kind: "error.hw", ValueContains: "XID_79"},
			},
			RootCausePattern: rules.RootCausePattern{Primary: "GPU Xid 79 fault"},
			SolutionSteps:    []string{"drain the node", "file a hardware ticket"},
		},
	})

	why := a.Why(200)
	require.False(t, why.NotFound)
	require.NotNil(t, why.Scene)
	require.Equal(t, []string{"drain the node", "file a hardware ticket"}, why.Scene.RecommendedActions)
}

func TestAgent_FixDispatchesAndAudits(t *testing.T) {
	a := newTestAgent(t)
	go a.Graph().Run()
	defer a.Graph().Stop()

	res := a.Fix(context.Background(), action.Intent{Op: action.OpKill, PID: 999999, User: "test"})
	require.False(t, res.AllSucceeded())
	require.Len(t, res.Results, 1)
}

// TestRunHubClientNoopWithoutHubAddr exercises the early-return path when
// no hub address is configured, so RunHubClient never blocks a shutdown.
func TestRunHubClientNoopWithoutHubAddr(t *testing.T) {
	a := newTestAgent(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.RunHubClient(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunHubClient did not return promptly when HubAddr is empty")
	}
}
