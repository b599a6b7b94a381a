// Package ipc implements the length-prefixed JSON framing shared by the
// local control socket and the agent<->hub duplex session (spec §5/§6:
// "framing equivalent to the local IPC"). A frame is a 4-byte big-endian
// length prefix followed by exactly that many bytes of JSON payload.
package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/sentinelgraph/sentinel/pkg/causerr"
)

// MaxRequestBytes and MaxResponseBytes bound frame sizes (spec §5: request
// bodies capped at 10 MiB, responses at 100 MiB).
const (
	MaxRequestBytes  = 10 * 1024 * 1024
	MaxResponseBytes = 100 * 1024 * 1024
)

// lengthPrefixSize is the width of the frame's length prefix in bytes.
const lengthPrefixSize = 4

// WriteFrame writes one length-prefixed JSON frame to w.
func WriteFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return causerr.IoError("marshal frame", err)
	}

	var hdr [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return causerr.IoError("write frame length", err)
	}
	if _, err := w.Write(payload); err != nil {
		return causerr.IoError("write frame payload", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r into v. maxBytes
// bounds the accepted payload size; a frame over the limit is a
// RequestError and the caller should close the connection (spec §7
// RequestError).
func ReadFrame(r *bufio.Reader, maxBytes uint32, v interface{}) error {
	var hdr [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return causerr.IoError("read frame length", err)
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxBytes {
		return causerr.RequestError("frame exceeds size limit", nil)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return causerr.IoError("read frame payload", err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return causerr.RequestError("malformed frame payload", err)
	}
	return nil
}
