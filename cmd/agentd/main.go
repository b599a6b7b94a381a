// Command agentd runs the host-scope causal-diagnostics daemon (spec §4):
// it owns the event bus, state graph, ingest adapter, rule engine, query
// engine, and action dispatcher for one host, answering ps/why/diag over
// a local control socket and optionally forwarding to a hub.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/ipc"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "agentd",
	Short:   "Host-scope causal-diagnostics agent",
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("agentd version %s (%s)\n", Version, Commit))

	rootCmd.Flags().String("config", "", "path to agent config YAML")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "emit JSON logs")
	rootCmd.Flags().String("host-id", "", "host identity reported to the hub (defaults to the OS hostname)")
	rootCmd.Flags().String("socket-path", "", "override the local IPC socket path")
	rootCmd.Flags().String("hub-addr", "", "override the hub duplex-session address (empty keeps the configured one; forwarding is off when that is empty too)")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "address for /metrics, /health, /ready, /live")
}

func runAgent(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetBool("log-json"); cmd.Flags().Changed("log-json") {
		cfg.LogJSON = v
	}
	if v, _ := cmd.Flags().GetString("socket-path"); v != "" {
		cfg.IPCSocketPath = v
	}
	if v, _ := cmd.Flags().GetString("hub-addr"); v != "" {
		cfg.HubAddr = v
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	metrics.SetVersion(Version)

	hostID, _ := cmd.Flags().GetString("host-id")
	a, err := agent.New(cfg, hostID)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	ln, err := ipc.Listen(cfg.IPCSocketPath, cfg.IPCTCPAddr)
	if err != nil {
		return fmt.Errorf("listen on local control socket: %w", err)
	}
	defer ln.Close()

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go serveMetrics(metricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.Serve(ctx, ln)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		a.Run(ctx)
	}()

	l := log.WithComponent("agentd")
	l.Info().Str("host_id", a.HostID).Str("socket", cfg.IPCSocketPath).Str("hub_addr", cfg.HubAddr).Msg("agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info().Msg("shutting down")
	cancel()

	select {
	case <-runDone:
	case <-time.After(10 * time.Second):
		l.Warn().Msg("agent shutdown did not complete within 10s, exiting anyway")
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("agentd").Warn().Err(err).Msg("metrics server stopped")
	}
}
