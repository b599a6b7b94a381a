package rules_test

import (
	"testing"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/rules"
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

func TestLoadDir_SkipsMalformedFiles(t *testing.T) {
	loaded, err := rules.LoadDir("testdata/mixed")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "stall-watch", loaded[0].Name)
}

func TestLoadDir_SortsByPriorityDescending(t *testing.T) {
	loaded, err := rules.LoadDir("testdata/good")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, 100, loaded[0].Priority)
	require.Equal(t, 95, loaded[1].Priority)
}

// TestMatch_HigherPriorityWins is spec §8 scenario 5: two rules match
// simultaneously with priorities 95 and 100; the priority-100 rule wins.
func TestMatch_HigherPriorityWins(t *testing.T) {
	loaded, err := rules.LoadDir("testdata/good")
	require.NoError(t, err)

	g := graph.New(testWindows())
	require.NoError(t, g.Apply(bus.Event{TsMs: 1, Kind: bus.KindProcessState, PID: pidPtr(300), Value: "start"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 2, Kind: bus.KindComputeUtil, EntityID: "gpu-0", PID: pidPtr(300), Value: "80"}))
	require.NoError(t, g.Apply(bus.Event{TsMs: 3, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}))

	events := []bus.Event{{TsMs: 3, Kind: bus.KindErrorHW, EntityID: "gpu-0", Value: "XID_79"}}

	winner, ok := rules.Match(loaded, g.Snapshot(), events)
	require.True(t, ok)
	require.Equal(t, "gpu-error-critical", winner.Name)
	require.Equal(t, 100, winner.Priority)
	require.Equal(t, []string{"page on-call immediately"}, winner.SolutionSteps)
}

func TestMatch_NoRulesMatch(t *testing.T) {
	loaded, err := rules.LoadDir("testdata/good")
	require.NoError(t, err)

	g := graph.New(testWindows())
	_, ok := rules.Match(loaded, g.Snapshot(), nil)
	require.False(t, ok)
}

func TestEvaluate_AnyDisjunction(t *testing.T) {
	cond := rules.Condition{
		Any: []rules.Condition{
			{Event: &rules.EventCondition{Kind: "error.net"}},
			{Event: &rules.EventCondition{Kind: "error.hw", ValueContains: "XID"}},
		},
	}
	events := []bus.Event{{Kind: bus.KindErrorHW, Value: "XID_79"}}
	require.True(t, rules.Evaluate(cond, graph.Snapshot{}, events))
}

func TestEvaluate_MetricThresholdNeverCoercesNonNumeric(t *testing.T) {
	cond := rules.Condition{
		Metric: &rules.MetricCondition{NodeIDGlob: "Resource:*", Key: "qdepth_raw", Op: rules.OpGT, Target: "10"},
	}
	snap := graph.Snapshot{Nodes: map[string]graph.Node{
		"Resource:storage-0": {ID: "Resource:storage-0", Metadata: map[string]string{"qdepth_raw": "IO_WAIT"}},
	}}
	require.False(t, rules.Evaluate(cond, snap, nil))
}
