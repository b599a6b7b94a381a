// Package health tracks the liveness of supervised probe processes.
//
// It is used by pkg/ingest to decide when a probe has restarted often
// enough to be considered unhealthy. The model is deliberately small: a
// rolling count of consecutive successes/failures plus the timestamp of
// the last observation and an optional startup grace period.
package health

import "time"

// Result is the outcome of a single liveness observation.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
}

// Config controls how observations turn into a Healthy/Unhealthy verdict.
type Config struct {
	// Retries is the number of consecutive failures before Healthy flips false.
	Retries int

	// StartPeriod is the startup grace period reported by InStartPeriod.
	// Update does not consult it.
	StartPeriod time.Duration
}

// DefaultConfig mirrors the ingest adapter's own restart tolerance.
func DefaultConfig() Config {
	return Config{
		Retries:     3,
		StartPeriod: 5 * time.Second,
	}
}

// Status tracks liveness over time for one supervised probe.
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
	StartedAt            time.Time
}

// NewStatus returns a Status that assumes health until proven otherwise.
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update folds a new observation into the status.
func (s *Status) Update(result Result, cfg Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if cfg.Retries > 0 && s.ConsecutiveFailures >= cfg.Retries {
		s.Healthy = false
	}
}

// InStartPeriod reports whether the probe is still within its startup grace
// period. Update counts failures in this period like any other.
func (s *Status) InStartPeriod(cfg Config) bool {
	if cfg.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < cfg.StartPeriod
}
