// Package config loads the daemon's YAML configuration. The cmd/agentd and
// cmd/hubd commands apply their cobra flag overrides on top of the loaded
// Config; this package itself reads no flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Probe describes one external probe process the ingest adapter supervises.
type Probe struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// GraphWindows holds the sliding-window durations from spec §3/§4.3.
type GraphWindows struct {
	ErrorWindow    time.Duration `yaml:"error_window"`
	ResourceWindow time.Duration `yaml:"resource_window"`
	ProcessGrace   time.Duration `yaml:"process_grace"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// DefaultGraphWindows returns the windows named in spec §3/§4.3.
func DefaultGraphWindows() GraphWindows {
	return GraphWindows{
		ErrorWindow:    300 * time.Second,
		ResourceWindow: 300 * time.Second,
		ProcessGrace:   1 * time.Second,
		SweepInterval:  1 * time.Second,
	}
}

// Config is the daemon's full configuration document, shared in structure
// by the agent and the hub (each only reads the sections relevant to it).
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`

	Probes      []Probe      `yaml:"probes"`
	BusCapacity int          `yaml:"bus_capacity"`
	Graph       GraphWindows `yaml:"graph"`
	RuleDir     string       `yaml:"rule_dir"`

	IPCSocketPath string `yaml:"ipc_socket_path"`
	IPCTCPAddr    string `yaml:"ipc_tcp_addr"`

	HubAddr        string        `yaml:"hub_addr"`
	HubHTTPAddr    string        `yaml:"hub_http_addr"`
	SessionTimeout time.Duration `yaml:"session_timeout"`

	AuditLogPath     string `yaml:"audit_log_path"`
	AuditMaxSizeMB   int    `yaml:"audit_max_size_mb"`
	AuditMaxBackups  int    `yaml:"audit_max_backups"`
}

// Default returns a Config with every field at its spec-mandated default.
func Default() Config {
	return Config{
		LogLevel:        "info",
		BusCapacity:     8192,
		Graph:           DefaultGraphWindows(),
		RuleDir:         "/etc/sentinel/rules",
		IPCSocketPath:   "/var/run/sentinel/agent.sock",
		IPCTCPAddr:      "127.0.0.1:9191",
		HubAddr:         "127.0.0.1:7070",
		HubHTTPAddr:     "127.0.0.1:8080",
		SessionTimeout:  60 * time.Second,
		AuditLogPath:    "/var/log/sentinel/audit.log",
		AuditMaxSizeMB:  100,
		AuditMaxBackups: 5,
	}
}

// Load reads and parses a YAML config file, starting from Default() so any
// field the file omits keeps its spec-mandated default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
