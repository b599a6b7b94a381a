// Package ingest implements the ingest adapter (spec §4.2, component C2):
// it supervises one external probe subprocess per configured probe path,
// parses its newline-delimited JSON stdout into bus.Events, and bounds
// probe failures with a doubling backoff restart. A probe crash never
// terminates the daemon.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/causerr"
	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/health"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// wireEvent is the JSON shape a probe writes on stdout, one object per
// line (spec §6 "Probe -> daemon"). Extra fields are ignored by
// json.Unmarshal's default behaviour.
type wireEvent struct {
	TsMs      int64   `json:"ts"`
	EventType string  `json:"event_type"`
	EntityID  string  `json:"entity_id"`
	JobID     *string `json:"job_id"`
	PID       *uint32 `json:"pid"`
	Value     string  `json:"value"`
}

// InitialBackoff and MaxBackoff bound the probe restart delay (spec §4.2:
// "initial 1s, doubling to 30s").
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second
)

// Adapter supervises every configured probe. Each probe gets its own
// reader task; all share the same bus producer handle (spec §4.2
// "Concurrency").
type Adapter struct {
	probes []config.Probe
	bus    *bus.Bus

	wg sync.WaitGroup

	mu       sync.Mutex
	statuses map[string]*health.Status
}

// New creates an Adapter over the given probe configurations, publishing
// parsed events onto b.
func New(probes []config.Probe, b *bus.Bus) *Adapter {
	return &Adapter{
		probes:   probes,
		bus:      b,
		statuses: make(map[string]*health.Status),
	}
}

// Run starts one supervisor goroutine per probe and blocks until ctx is
// cancelled, at which point every child is SIGTERMed and its output
// drained before Run returns (spec §4.2 "Cancellation").
func (a *Adapter) Run(ctx context.Context) {
	for _, p := range a.probes {
		a.mu.Lock()
		a.statuses[p.Name] = health.NewStatus()
		a.mu.Unlock()

		a.wg.Add(1)
		go func(p config.Probe) {
			defer a.wg.Done()
			a.superviseProbe(ctx, p)
		}(p)
	}
	<-ctx.Done()
	a.wg.Wait()
}

// Status returns the liveness status of a named probe, or nil if unknown.
func (a *Adapter) Status(name string) *health.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statuses[name]
}

// superviseProbe runs one probe to completion repeatedly, applying a
// doubling backoff between restarts, until ctx is cancelled.
func (a *Adapter) superviseProbe(ctx context.Context, p config.Probe) {
	l := log.WithComponent("ingest").With().Str("probe", p.Name).Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = InitialBackoff
	bo.MaxInterval = MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // retry forever; the daemon never gives up on a probe

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runErr := a.runProbeOnce(ctx, p, l)
		if ctx.Err() != nil {
			return
		}

		a.mu.Lock()
		status := a.statuses[p.Name]
		a.mu.Unlock()
		status.Update(health.Result{Healthy: false, Message: runErr.Error(), CheckedAt: time.Now()}, health.DefaultConfig())

		metrics.ProbeRestartsTotal.WithLabelValues(p.Name).Inc()
		a.publishProbeFailure(ctx, p, runErr)

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = MaxBackoff
		}
		l.Warn().Err(runErr).Dur("backoff", wait).Msg("probe exited, restarting")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// publishProbeFailure synthesizes the error.hw event spec §4.2 requires on
// a probe crash, keyed to the probe name.
func (a *Adapter) publishProbeFailure(ctx context.Context, p config.Probe, cause error) {
	ev := bus.Event{
		TsMs:     time.Now().UnixMilli(),
		Kind:     bus.KindErrorHW,
		EntityID: "probe/" + p.Name,
		Value:    "PROBE_CRASH",
	}
	if err := a.bus.Publish(ctx, ev); err != nil {
		log.WithComponent("ingest").Warn().Err(err).Str("probe", p.Name).Msg("failed to publish probe-crash event")
	}
	_ = causerr.ProbeFailure("probe "+p.Name+" exited", cause)
}

// runProbeOnce starts the probe, reads its stdout line by line until the
// process exits or ctx is cancelled, and returns the reason it stopped.
func (a *Adapter) runProbeOnce(ctx context.Context, p config.Probe, l zerolog.Logger) error {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return causerr.ProbeFailure("stdout pipe for "+p.Name, err)
	}
	cmd.Stderr = stderrSink{probe: p.Name}

	if err := cmd.Start(); err != nil {
		return causerr.ProbeFailure("start "+p.Name, err)
	}

	parseThrottle := log.NewThrottled(5 * time.Second)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, perr := parseLine(line)
		if perr != nil {
			metrics.EventsParseErrorsTotal.Inc()
			if parseThrottle.Allow(p.Name) {
				l.Warn().Err(perr).Msg("probe emitted unparseable line")
			}
			continue
		}
		if pubErr := a.bus.Publish(ctx, ev); pubErr != nil {
			return pubErr
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return causerr.ProbeFailure("probe "+p.Name+" exited", waitErr)
	}
	return causerr.ProbeFailure("probe "+p.Name+" stream closed", nil)
}

// parseLine converts one probe stdout line into a bus.Event (spec §6).
func parseLine(line []byte) (bus.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return bus.Event{}, causerr.ParseError("malformed probe line", err)
	}
	if w.EventType == "" || w.EntityID == "" {
		return bus.Event{}, causerr.ParseError("probe line missing event_type/entity_id", nil)
	}
	switch bus.Kind(w.EventType) {
	case bus.KindComputeUtil, bus.KindComputeMem, bus.KindTransportBW, bus.KindTransportDrop,
		bus.KindStorageIOPS, bus.KindStorageQDepth, bus.KindProcessState, bus.KindErrorHW,
		bus.KindErrorNet, bus.KindTopoLinkDown, bus.KindIntentRun, bus.KindActionExec:
	default:
		return bus.Event{}, causerr.ParseError("unknown event_type "+w.EventType, nil)
	}

	ev := bus.Event{
		TsMs:     int64(w.TsMs),
		Kind:     bus.Kind(w.EventType),
		EntityID: w.EntityID,
		Value:    w.Value,
	}
	if w.JobID != nil {
		ev.JobID = *w.JobID
	}
	if w.PID != nil {
		pid := int(*w.PID)
		ev.PID = &pid
	}
	return ev, nil
}

// stderrSink forwards a probe's stderr verbatim into the component logger
// (spec §6: "Standard error is captured verbatim for logging").
type stderrSink struct {
	probe string
}

func (s stderrSink) Write(p []byte) (int, error) {
	log.WithComponent("ingest").Debug().Str("probe", s.probe).Bytes("stderr", p).Msg("probe stderr")
	return len(p), nil
}
