package agent

import (
	"bufio"
	"context"
	"net"
	"syscall"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/causerr"
	"github.com/sentinelgraph/sentinel/pkg/ipc"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/query"
)

// Request is the local control-socket request schema (spec §5/§6): ps,
// why, diag, fix, framed with the same length-prefixed JSON used by the
// hub session.
type Request struct {
	Op     string `json:"op"`
	PID    int    `json:"pid,omitempty"`
	FixOp  string `json:"fix_op,omitempty"`
	Signal int    `json:"signal,omitempty"`
	User   string `json:"user,omitempty"`
}

// Response is the local control-socket response envelope. Exactly one
// result field is populated per Request.Op; Error is set instead of any
// result on a malformed request.
type Response struct {
	Error string              `json:"error,omitempty"`
	PS    *query.PSResponse   `json:"ps,omitempty"`
	Why   *query.WhyResponse  `json:"why,omitempty"`
	Diag  *query.DiagResponse `json:"diag,omitempty"`
	Fix   *action.Result      `json:"fix,omitempty"`
}

// Serve accepts local control connections until ln is closed or ctx is
// cancelled, handling each on its own goroutine (spec §5: the local-IPC
// accept loop is one of the daemon's independent long-lived tasks).
func (a *Agent) Serve(ctx context.Context, ln net.Listener) {
	l := log.WithComponent("agent-ipc")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Warn().Err(err).Msg("accept failed")
			return
		}
		go a.handleConn(ctx, conn)
	}
}

func (a *Agent) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	l := log.WithComponent("agent-ipc")

	reader := bufio.NewReader(conn)
	for {
		var req Request
		if err := ipc.ReadFrame(reader, ipc.MaxRequestBytes, &req); err != nil {
			// RequestError (oversized/malformed frame): report, then close
			// the connection (spec §7 RequestError). Any other error (EOF,
			// reset) just ends the loop silently.
			if causerr.Is(err, causerr.KindRequestError) {
				_ = ipc.WriteFrame(conn, Response{Error: err.Error()})
			}
			return
		}

		resp := a.dispatch(ctx, req)
		if err := ipc.WriteFrame(conn, resp); err != nil {
			l.Warn().Err(err).Msg("failed to write response")
			return
		}
	}
}

func (a *Agent) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case "ps":
		ps := a.PS()
		return Response{PS: &ps}
	case "why":
		why := a.Why(req.PID)
		return Response{Why: &why}
	case "diag":
		diag := a.Diag(req.PID)
		return Response{Diag: &diag}
	case "fix":
		res := a.Fix(ctx, action.Intent{
			Op:     action.Op(req.FixOp),
			PID:    req.PID,
			Signal: syscall.Signal(req.Signal),
			User:   req.User,
		})
		return Response{Fix: &res}
	default:
		return Response{Error: "unknown op: " + req.Op}
	}
}
