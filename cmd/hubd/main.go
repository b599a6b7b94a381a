// Command hubd runs the cluster-scope aggregation hub (spec §4.7): it
// accepts one duplex session per connected agent, unions their per-host
// subgraphs, and serves cluster-wide ps/why/fix over HTTP.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sentinelgraph/sentinel/pkg/config"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/hub"
	"github.com/sentinelgraph/sentinel/pkg/log"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
	"github.com/sentinelgraph/sentinel/pkg/rules"
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
	Use:     "hubd",
	Short:   "Cluster-scope causal-diagnostics hub",
	Version: Version,
	RunE:    runHub,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hubd version %s (%s)\n", Version, Commit))

	rootCmd.Flags().String("config", "", "path to hub config YAML")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "emit JSON logs")
	rootCmd.Flags().String("session-addr", "", "override the agent duplex-session listen address")
	rootCmd.Flags().String("http-addr", "", "override the HTTP control-plane listen address")
}

func runHub(cmd *cobra.Command, _ []string) error {
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
	if v, _ := cmd.Flags().GetString("session-addr"); v != "" {
		cfg.HubAddr = v
	}
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.HubHTTPAddr = v
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	metrics.SetVersion(Version)

	var ruleSet []rules.Rule
	if cfg.RuleDir != "" {
		if loaded, err := rules.LoadDir(cfg.RuleDir); err != nil {
			log.WithComponent("hubd").Warn().Err(err).Str("rule_dir", cfg.RuleDir).Msg("no rules loaded, continuing with an empty rule set")
		} else {
			ruleSet = loaded
		}
	}

	windows := graph.Windows{
		ErrorWindow:    cfg.Graph.ErrorWindow,
		ResourceWindow: cfg.Graph.ResourceWindow,
		ProcessGrace:   cfg.Graph.ProcessGrace,
		SweepInterval:  cfg.Graph.SweepInterval,
	}
	h := hub.New(windows, cfg.SessionTimeout, ruleSet)
	go h.Run()

	sessionLn, err := net.Listen("tcp", cfg.HubAddr)
	if err != nil {
		return fmt.Errorf("listen for agent sessions on %s: %w", cfg.HubAddr, err)
	}
	defer sessionLn.Close()

	l := log.WithComponent("hubd")
	go acceptSessions(sessionLn, h, l)

	httpServer := &http.Server{Addr: cfg.HubHTTPAddr, Handler: h.Router()}
	go func() {
		l.Info().Str("addr", cfg.HubHTTPAddr).Msg("hub HTTP control-plane listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Warn().Err(err).Msg("hub HTTP server stopped")
		}
	}()

	l.Info().Str("session_addr", cfg.HubAddr).Msg("hub session listener ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	h.Stop()
	return nil
}

func acceptSessions(ln net.Listener, h *hub.Hub, l zerolog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			l.Warn().Err(err).Msg("session accept failed, listener stopping")
			return
		}
		go h.Serve(conn)
	}
}
