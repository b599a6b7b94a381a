package agent

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/hub"
	"github.com/sentinelgraph/sentinel/pkg/ipc"
	"github.com/sentinelgraph/sentinel/pkg/log"
)

// hubPollInterval is how often the forwarding client drains newly applied
// tail events for shipment (spec §4.7 "ships ... deltas").
const hubPollInterval = 500 * time.Millisecond

// isFoldedEvent reports whether ev belongs to the "edge-folded" set the
// hub-forwarding client ships: state transitions, new/cleared errors, and
// cross-host topology updates, never per-sample utilisation (spec §4.7).
func isFoldedEvent(kind bus.Kind) bool {
	switch kind {
	case bus.KindProcessState, bus.KindErrorHW, bus.KindErrorNet, bus.KindTopoLinkDown, bus.KindActionExec, bus.KindIntentRun:
		return true
	default:
		return false
	}
}

// RunHubClient maintains a long-lived duplex session to the hub, shipping
// edge-folded events and dispatching intents the hub forwards back (spec
// §4.7). It reconnects with a doubling backoff, mirroring the ingest
// adapter's own probe-restart discipline (spec §4.2), and blocks until ctx
// is cancelled.
func (a *Agent) RunHubClient(ctx context.Context) {
	if a.cfg.HubAddr == "" {
		return
	}
	l := log.WithComponent("agent-hub-client")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.DialTimeout("tcp", a.cfg.HubAddr, 5*time.Second)
		if err != nil {
			wait := bo.NextBackOff()
			l.Warn().Err(err).Dur("backoff", wait).Msg("hub connect failed, retrying")
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		l.Info().Str("hub_addr", a.cfg.HubAddr).Msg("hub session established")
		bo.Reset()
		a.serveHubSession(ctx, conn)
		l.Warn().Msg("hub session dropped, reconnecting")
	}
}

// serveHubSession runs one connection's send and receive loops until
// either fails or ctx is cancelled.
func (a *Agent) serveHubSession(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.receiveIntents(sessionCtx, conn)
		cancel()
	}()

	a.forwardEvents(sessionCtx, conn)
	cancel()
	<-done
}

// forwardEvents polls the graph's event tail and ships every new
// edge-folded event to the hub until sessionCtx is cancelled or a write
// fails.
func (a *Agent) forwardEvents(ctx context.Context, conn net.Conn) {
	l := log.WithComponent("agent-hub-client")
	var cursor int64

	ticker := time.NewTicker(hubPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			events, next := a.graph.TailSince(cursor)
			cursor = next
			for _, ev := range events {
				if !isFoldedEvent(ev.Kind) {
					continue
				}
				ev.HostID = a.HostID
				msg := hub.Message{Type: hub.MessageEvent, Event: &ev}
				if err := ipc.WriteFrame(conn, msg); err != nil {
					l.Warn().Err(err).Msg("failed to forward event to hub")
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// receiveIntents reads hub-forwarded intents off conn and dispatches them
// through the agent's own action dispatcher until ctx is cancelled or the
// connection errors.
func (a *Agent) receiveIntents(ctx context.Context, conn net.Conn) {
	l := log.WithComponent("agent-hub-client")
	reader := bufio.NewReader(conn)

	for {
		if ctx.Err() != nil {
			return
		}

		var msg hub.Message
		if err := ipc.ReadFrame(reader, ipc.MaxRequestBytes, &msg); err != nil {
			if ctx.Err() == nil {
				l.Warn().Err(err).Msg("hub session read failed")
			}
			return
		}
		if msg.Type != hub.MessageIntent || msg.Intent == nil {
			continue
		}

		in := action.Intent{
			Op:   action.Op(msg.Intent.Op),
			PID:  msg.Intent.Target,
			User: "hub",
		}
		res := a.Fix(ctx, in)
		l.Info().Str("op", msg.Intent.Op).Int("target", msg.Intent.Target).Bool("all_succeeded", res.AllSucceeded()).Msg("dispatched hub-forwarded intent")
	}
}
