// Package action implements the action dispatcher (spec §4.8, component
// C8): process-tree termination and orchestrator-facing intents. Every
// execution emits an action.exec event back onto the bus so the graph
// records the intervention, and appends an audit record to a rotating
// log (spec §4.8/§6).
package action

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/causerr"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// Op is one of the three intent kinds the dispatcher accepts.
type Op string

const (
	OpKill     Op = "kill"
	OpKillTree Op = "kill_tree"
	OpSignal   Op = "signal"
)

// Intent is one action request (spec §4.8).
type Intent struct {
	Op     Op
	PID    int
	Signal syscall.Signal // used only when Op == OpSignal
	User   string         // for the audit record
	JobID  string
}

// PIDResult is the per-pid outcome of dispatching an intent (spec §8
// scenario 6: "the response reports per-pid success/failure").
type PIDResult struct {
	PID     int    `json:"pid"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result is the full outcome of one dispatched intent.
type Result struct {
	Op      Op          `json:"op"`
	Target  int         `json:"target"`
	Results []PIDResult `json:"results"`
}

// AllSucceeded reports whether every pid in the result was signalled
// successfully.
func (r Result) AllSucceeded() bool {
	for _, pr := range r.Results {
		if !pr.Success {
			return false
		}
	}
	return true
}

// Dispatcher executes intents and records their effects.
type Dispatcher struct {
	bus   *bus.Bus
	audit *AuditLog
}

// New creates a Dispatcher that publishes action.exec events onto b and
// appends audit records to audit.
func New(b *bus.Bus, audit *AuditLog) *Dispatcher {
	return &Dispatcher{bus: b, audit: audit}
}

// Dispatch executes one intent. kill_tree enumerates the target's
// descendants via gopsutil and signals them in post-order (children
// before the parent) so the tree collapses from the leaves up; partial
// failures are reported rather than fatal (spec §4.8).
func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) Result {
	l := log.WithPID(in.PID)

	var targets []int
	switch in.Op {
	case OpKillTree:
		targets = append(d.descendantsPostOrder(in.PID), in.PID)
	case OpKill:
		targets = []int{in.PID}
	case OpSignal:
		targets = []int{in.PID}
	default:
		res := Result{Op: in.Op, Target: in.PID, Results: []PIDResult{{PID: in.PID, Success: false, Error: "unknown op"}}}
		d.recordAndPublish(ctx, in, res, l)
		return res
	}

	sig := syscall.SIGKILL
	if in.Op == OpSignal {
		sig = in.Signal
	}

	results := make([]PIDResult, 0, len(targets))
	for _, pid := range targets {
		err := signalPID(pid, sig)
		pr := PIDResult{PID: pid}
		if err != nil {
			pr.Error = err.Error()
		} else {
			pr.Success = true
		}
		results = append(results, pr)
	}

	res := Result{Op: in.Op, Target: in.PID, Results: results}
	d.recordAndPublish(ctx, in, res, l)
	return res
}

func (d *Dispatcher) recordAndPublish(ctx context.Context, in Intent, res Result, l zerolog.Logger) {
	outcome := "ok"
	if !res.AllSucceeded() {
		outcome = "partial_failure"
	}
	metrics.ActionsTotal.WithLabelValues(string(in.Op), outcome).Inc()

	ev := bus.Event{
		TsMs:     time.Now().UnixMilli(),
		Kind:     bus.KindActionExec,
		EntityID: fmt.Sprintf("action/%d", in.PID),
		PID:      &in.PID,
		Value:    string(in.Op),
	}
	if err := d.bus.Publish(ctx, ev); err != nil {
		l.Warn().Err(err).Msg("failed to publish action.exec event")
	}

	if d.audit != nil {
		if err := d.audit.Append(Record{
			ID:        uuid.NewString(),
			TsMs:      ev.TsMs,
			User:      in.User,
			Action:    string(in.Op),
			TargetPID: in.PID,
			JobID:     in.JobID,
			Result:    outcome,
			Details:   res,
		}); err != nil {
			l.Warn().Err(err).Msg("audit log write failed")
		}
	}
}

// descendantsPostOrder returns pid's descendants ordered so that every
// child appears before its own parent (post-order), the "children first"
// requirement of kill_tree.
func (d *Dispatcher) descendantsPostOrder(pid int) []int {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []int
	var walk func(p *process.Process)
	walk = func(p *process.Process) {
		children, err := p.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			walk(c)
			out = append(out, int(c.Pid))
		}
	}
	walk(proc)
	return out
}

func signalPID(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(pid, sig); err != nil {
		return causerr.IoError(fmt.Sprintf("signal pid %d", pid), err)
	}
	return nil
}
