package action_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/bus"
)

// Part of spec §8 scenario 6: a kill against an unsignallable (e.g. already
// dead) pid is reported as a per-pid failure, not a fatal error, and
// still emits an action.exec event for that pid.
func TestDispatch_KillUnsignallablePIDReportsFailure(t *testing.T) {
	b := bus.New(4)
	dir := t.TempDir()
	audit := action.OpenAuditLog(filepath.Join(dir, "audit.log"), 1, 1)
	defer audit.Close()

	d := action.New(b, audit)
	res := d.Dispatch(context.Background(), action.Intent{Op: action.OpKill, PID: 999999, User: "operator"})

	require.Equal(t, action.OpKill, res.Op)
	require.Len(t, res.Results, 1)
	require.False(t, res.Results[0].Success)
	require.NotEmpty(t, res.Results[0].Error)

	select {
	case ev := <-b.Events():
		require.Equal(t, bus.KindActionExec, ev.Kind)
		require.NotNil(t, ev.PID)
		require.Equal(t, 999999, *ev.PID)
	default:
		t.Fatal("expected one action.exec event on the bus")
	}
}

func TestAuditLog_AppendsRFC3339Line(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	audit := action.OpenAuditLog(path, 1, 1)

	require.NoError(t, audit.Append(action.Record{
		TsMs:      1700000000000,
		User:      "operator",
		Action:    "kill",
		TargetPID: 300,
		Result:    "ok",
	}))
	require.NoError(t, audit.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &record))
	require.Equal(t, "kill", record["action"])
	require.Contains(t, record["ts"], "T")
}
