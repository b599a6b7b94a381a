// Package causerr implements the daemon's error taxonomy: six kinds of
// internal failure, each wrapped with context and counted in pkg/metrics.
// None of these are fatal to the daemon except where a caller explicitly
// chooses to treat one as such (spec §7).
package causerr

import (
	"errors"
	"fmt"

	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// Kind is one of the six taxonomy kinds from the specification's error
// handling design. It is a classification, not a Go error type hierarchy.
type Kind string

const (
	// KindParseError is a malformed probe line or rule file.
	KindParseError Kind = "parse_error"
	// KindProbeFailure is a child process death or closed stream.
	KindProbeFailure Kind = "probe_failure"
	// KindIoError is a local socket, hub session, or audit log write failure.
	KindIoError Kind = "io_error"
	// KindGraphContractViolation is an invalid derivation result.
	KindGraphContractViolation Kind = "graph_contract_violation"
	// KindRequestError is an oversized or malformed local-IPC request.
	KindRequestError Kind = "request_error"
	// KindNotFound is a query for an unknown pid/job, reported as success.
	KindNotFound Kind = "not_found"
)

// Error wraps an underlying cause with a taxonomy kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind Kind, msg string, err error) *Error {
	metrics.ErrorsTotal.WithLabelValues(string(kind)).Inc()
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ParseError wraps a malformed probe line or rule file parse failure.
func ParseError(msg string, err error) *Error {
	return newErr(KindParseError, msg, err)
}

// ProbeFailure wraps a probe process death or stream-closed condition.
func ProbeFailure(msg string, err error) *Error {
	return newErr(KindProbeFailure, msg, err)
}

// IoError wraps a local socket, hub session, or audit log write failure.
func IoError(msg string, err error) *Error {
	return newErr(KindIoError, msg, err)
}

// GraphContractViolation wraps an invalid derivation result (e.g. an edge
// proposed without both endpoints present).
func GraphContractViolation(msg string, err error) *Error {
	return newErr(KindGraphContractViolation, msg, err)
}

// RequestError wraps an oversized or malformed local-IPC request.
func RequestError(msg string, err error) *Error {
	return newErr(KindRequestError, msg, err)
}

// NotFound wraps a query for an unknown pid/job. Callers map this to a
// structured `not_found: true` response, never to an HTTP/IPC error.
func NotFound(msg string) *Error {
	return newErr(KindNotFound, msg, nil)
}

// Is reports whether err's chain contains a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
