// Package agent wires the bus, state graph, ingest adapter, rule engine,
// query engine, scene analyzers, and action dispatcher into one running
// host-scope daemon process (spec §4, component pipeline C1-C6, C8), and
// exposes it over the local control socket plus an optional hub-forwarding
// session.
package agent

import (
	"context"
	"os"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/action"
	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/ingest"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
	"github.com/sentinelgraph/sentinel/pkg/query"
	"github.com/sentinelgraph/sentinel/pkg/rules"
)

// Agent is one host's causal-diagnostics process.
type Agent struct {
	HostID string

	cfg    config.Config
	bus    *bus.Bus
	graph  *graph.Graph
	ingest *ingest.Adapter
	action *action.Dispatcher
	audit  *action.AuditLog
	rules  []rules.Rule

	collector *Collector
}

// New builds an Agent from cfg. If hostID is empty the local hostname is
// used (spec §6, the host_id carried on every forwarded event).
func New(cfg config.Config, hostID string) (*Agent, error) {
	if hostID == "" {
		if h, err := os.Hostname(); err == nil {
			hostID = h
		} else {
			hostID = "unknown-host"
		}
	}

	windows := graph.Windows{
		ErrorWindow:    cfg.Graph.ErrorWindow,
		ResourceWindow: cfg.Graph.ResourceWindow,
		ProcessGrace:   cfg.Graph.ProcessGrace,
		SweepInterval:  cfg.Graph.SweepInterval,
	}

	l := log.WithComponent("agent")

	var ruleSet []rules.Rule
	if cfg.RuleDir != "" {
		loaded, err := rules.LoadDir(cfg.RuleDir)
		if err != nil {
			l.Warn().Err(err).Str("rule_dir", cfg.RuleDir).Msg("no rules loaded, continuing with an empty rule set")
		} else {
			ruleSet = loaded
		}
	}

	var audit *action.AuditLog
	if cfg.AuditLogPath != "" {
		audit = action.OpenAuditLog(cfg.AuditLogPath, cfg.AuditMaxSizeMB, cfg.AuditMaxBackups)
	}

	b := bus.New(cfg.BusCapacity)
	g := graph.New(windows)

	a := &Agent{
		HostID:    hostID,
		cfg:       cfg,
		bus:       b,
		graph:     g,
		ingest:    ingest.New(cfg.Probes, b),
		action:    action.New(b, audit),
		audit:     audit,
		rules:     ruleSet,
		collector: NewCollector(g),
	}
	return a, nil
}

// Run starts every long-running subsystem and blocks until ctx is
// cancelled, then drains the bus and flushes the audit log (spec §5
// "Cancellation").
func (a *Agent) Run(ctx context.Context) {
	l := log.WithComponent("agent").With().Str("host_id", a.HostID).Logger()

	metrics.RegisterComponent("graph", true, "")
	metrics.RegisterComponent("bus", true, "")
	metrics.RegisterComponent("ingest", true, "")

	go a.graph.Run()
	go a.graph.Consume(a.bus.Events())
	go a.ingest.Run(ctx)
	go a.collector.Run(ctx)
	go a.RunHubClient(ctx)

	startupErr := a.bus.Publish(ctx, bus.Event{
		TsMs:     time.Now().UnixMilli(),
		Kind:     bus.KindProcessState,
		EntityID: "agentd",
		Value:    string(bus.ProcessStart),
		HostID:   a.HostID,
	})
	if startupErr != nil {
		l.Warn().Err(startupErr).Msg("failed to publish startup health event")
	}

	l.Info().Msg("agent running")
	<-ctx.Done()

	l.Info().Msg("agent shutting down")
	a.graph.Stop()
	a.bus.Close()
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			l.Warn().Err(err).Msg("failed to flush audit log")
		}
	}
}

// PS answers the ps query over the agent's own graph (spec §4.6).
func (a *Agent) PS() query.PSResponse {
	return query.PS(a.graph.Snapshot())
}

// Why answers why(pid), overlaying the winning rule's solution_steps onto
// the scene analyzers' report when a rule also matches (spec §4.4
// "its solution_steps are returned verbatim").
func (a *Agent) Why(pid int) query.WhyResponse {
	snap := a.graph.Snapshot()
	resp := query.Why(snap, pid)
	a.overlayRule(&resp, snap)
	return resp
}

// Diag answers diag(pid), applying the same rule overlay as Why.
func (a *Agent) Diag(pid int) query.DiagResponse {
	snap := a.graph.Snapshot()
	resp := query.Diag(snap, pid)
	a.overlayRule(&resp.WhyResponse, snap)
	return resp
}

func (a *Agent) overlayRule(resp *query.WhyResponse, snap graph.Snapshot) {
	if resp.NotFound || len(a.rules) == 0 {
		return
	}
	winner, ok := rules.Match(a.rules, snap, a.graph.RecentEvents())
	if !ok {
		return
	}
	if resp.Scene == nil {
		resp.Scene = &query.SceneDTO{
			SceneTag:           winner.Scene,
			RootCausePrimary:   winner.RootCausePattern.Primary,
			RootCauseSecondary: winner.RootCausePattern.Secondary,
		}
	}
	resp.Scene.RecommendedActions = winner.SolutionSteps
}

// Fix dispatches an action intent (spec §4.8) and returns its result.
func (a *Agent) Fix(ctx context.Context, in action.Intent) action.Result {
	return a.action.Dispatch(ctx, in)
}

// SetRulesForTest overrides the agent's loaded rule set. Exported for
// tests that need deterministic rule fixtures rather than a rule
// directory on disk; production callers only ever load rules via New.
func (a *Agent) SetRulesForTest(rs []rules.Rule) {
	a.rules = rs
}

// Bus exposes the agent's event bus to tests. The hub-forwarding client
// uses the agent's fields directly.
func (a *Agent) Bus() *bus.Bus { return a.bus }

// Graph exposes the agent's graph to tests. The hub-forwarding client uses
// the agent's fields directly.
func (a *Agent) Graph() *graph.Graph { return a.graph }
