package action

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sentinelgraph/sentinel/pkg/causerr"
)

// Record is one audit log entry (spec §4.8/§6): "JSON object per line ...
// time in RFC 3339." TsMs is kept internally as the event carrier's epoch
// milliseconds; Append renders it as RFC 3339 through auditWire (Record
// itself has no MarshalJSON).
type Record struct {
	ID        string      `json:"-"`
	TsMs      int64       `json:"-"`
	User      string      `json:"user"`
	Action    string      `json:"action"`
	TargetPID int         `json:"target_pid"`
	JobID     string      `json:"job_id,omitempty"`
	Result    string      `json:"result"`
	Details   interface{} `json:"details,omitempty"`
}

// auditWire is Record's on-disk JSON shape, with ts rendered as RFC 3339.
// id is a uuid identifying this record uniquely, so an external system can
// reference one intervention without relying on (ts, pid) as a key.
type auditWire struct {
	ID        string      `json:"id"`
	Ts        string      `json:"ts"`
	User      string      `json:"user"`
	Action    string      `json:"action"`
	TargetPID int         `json:"target_pid"`
	JobID     string      `json:"job_id,omitempty"`
	Result    string      `json:"result"`
	Details   interface{} `json:"details,omitempty"`
}

// AuditLog appends one JSON object per line to a rotating file (spec
// §4.8: "default rotation at 100 MiB").
type AuditLog struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// DefaultMaxSizeMB is the audit log's default rotation threshold.
const DefaultMaxSizeMB = 100

// OpenAuditLog opens (creating if absent) a rotating audit log at path.
func OpenAuditLog(path string, maxSizeMB, maxBackups int) *AuditLog {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &AuditLog{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   false,
		},
	}
}

// Append writes one audit record as a JSON line. Audit failures are
// reported to the caller but never block the action they describe (spec
// §7 IoError).
func (a *AuditLog) Append(r Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	wire := auditWire{
		ID:        r.ID,
		Ts:        time.UnixMilli(r.TsMs).UTC().Format(time.RFC3339),
		User:      r.User,
		Action:    r.Action,
		TargetPID: r.TargetPID,
		JobID:     r.JobID,
		Result:    r.Result,
		Details:   r.Details,
	}

	line, err := json.Marshal(wire)
	if err != nil {
		return causerr.IoError("marshal audit record", err)
	}
	line = append(line, '\n')

	if _, err := a.writer.Write(line); err != nil {
		return causerr.IoError("write audit record", err)
	}
	return nil
}

// Close flushes and closes the underlying rotating file.
func (a *AuditLog) Close() error {
	return a.writer.Close()
}
