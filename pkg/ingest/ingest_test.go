package ingest

import (
	"testing"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Valid(t *testing.T) {
	line := []byte(`{"ts":1000,"event_type":"compute.util","entity_id":"gpu-0","pid":100,"value":"80"}`)
	ev, err := parseLine(line)
	require.NoError(t, err)
	require.Equal(t, bus.KindComputeUtil, ev.Kind)
	require.Equal(t, "gpu-0", ev.EntityID)
	require.NotNil(t, ev.PID)
	require.Equal(t, 100, *ev.PID)
	require.Equal(t, "80", ev.Value)
}

func TestParseLine_NullPIDIsLegitimate(t *testing.T) {
	// spec §9 Open Questions: the TCP-retransmit probe's pid is unreliable
	// and legitimately null; such events must never synthesize a process edge.
	line := []byte(`{"ts":1000,"event_type":"transport.drop","entity_id":"nic-0","pid":null,"value":"IO_WAIT"}`)
	ev, err := parseLine(line)
	require.NoError(t, err)
	require.False(t, ev.HasPID())
}

func TestParseLine_MalformedJSON(t *testing.T) {
	_, err := parseLine([]byte(`not json`))
	require.Error(t, err)
}

func TestParseLine_MissingRequiredFields(t *testing.T) {
	_, err := parseLine([]byte(`{"ts":1000,"value":"80"}`))
	require.Error(t, err)
}

func TestParseLine_ExtraFieldsIgnored(t *testing.T) {
	line := []byte(`{"ts":1,"event_type":"process.state","entity_id":"100","pid":100,"value":"start","unexpected":"field"}`)
	ev, err := parseLine(line)
	require.NoError(t, err)
	require.Equal(t, bus.KindProcessState, ev.Kind)
}
