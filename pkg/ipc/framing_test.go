package ipc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Op  string `json:"op"`
	PID int    `json:"pid"`
}

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := payload{Op: "why", PID: 100}
	require.NoError(t, WriteFrame(&buf, in))

	var out payload
	require.NoError(t, ReadFrame(bufio.NewReader(&buf), MaxRequestBytes, &out))
	require.Equal(t, in, out)
}

func TestReadFrame_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, payload{Op: "ps"}))

	var out payload
	err := ReadFrame(bufio.NewReader(&buf), 1, &out)
	require.Error(t, err)
}

func TestReadFrame_RejectsMalformedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 4})
	buf.WriteString("nope")

	var out payload
	err := ReadFrame(bufio.NewReader(&buf), MaxRequestBytes, &out)
	require.Error(t, err)
}
