// Package scene implements the scene analyzers (spec §4.5, component C5):
// a closed registry of pure functions, each mapping a graph snapshot and a
// subject pid to an optional structured report of a named failure pattern.
package scene

import (
	"strconv"

	"github.com/sentinelgraph/sentinel/pkg/graph"
)

// Tag is one of the closed set of scene tags.
type Tag string

const (
	TagGpuOom          Tag = "GpuOom"
	TagGpuUtilLow      Tag = "GpuUtilLow"
	TagGpuError        Tag = "GpuError"
	TagNpuSubhealth    Tag = "NpuSubhealth"
	TagWorkloadStalled Tag = "WorkloadStalled"
	TagNetworkStall    Tag = "NetworkStall"
	TagNetworkDrop     Tag = "NetworkDrop"
	TagStorageIoError  Tag = "StorageIoError"
	TagStorageSlow     Tag = "StorageSlow"
	TagProcessBlocked  Tag = "ProcessBlocked"
	TagProcessCrash    Tag = "ProcessCrash"
)

// Severity ranks how urgently a report should be surfaced.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Report is the structured output of a scene analyzer.
type Report struct {
	SceneTag           Tag
	Severity           Severity
	RootCausePrimary   string
	RootCauseSecondary []string
	EvidenceNodeIDs    []string
	RecommendedActions []string
}

// Analyzer is a pure function (graph snapshot, subject pid) -> optional
// Report. No analyzer mutates the snapshot or has side effects.
type Analyzer func(snap graph.Snapshot, pid int) (Report, bool)

// Order is the fixed, deterministic invocation order for the registry
// (spec §4.5 "invoked in a deterministic order", §9 "no runtime inheritance
// required"). ProcessBlocked — the generic "has an active WaitsOn edge"
// analyzer — runs before the resource-class-specific Network/Storage
// analyzers: spec §8 scenario 3 expects the generic ProcessBlocked report
// (with WaitsOn -> nic-0 as evidence) once a process starts waiting, not a
// more specific NetworkStall, so the generic check takes priority here.
// GpuUtilLow runs after WorkloadStalled and the blocked/network/storage
// analyzers, so a low-utilisation gpu is reported only when none of those
// patterns match.
var Order = []Tag{
	TagGpuOom,
	TagGpuError,
	TagNpuSubhealth,
	TagWorkloadStalled,
	TagProcessBlocked,
	TagNetworkStall,
	TagNetworkDrop,
	TagStorageIoError,
	TagStorageSlow,
	TagGpuUtilLow,
	TagProcessCrash,
}

var registry = map[Tag]Analyzer{
	TagGpuOom:          analyzeGpuOom,
	TagGpuUtilLow:      analyzeGpuUtilLow,
	TagGpuError:        analyzeGpuError,
	TagNpuSubhealth:    analyzeNpuSubhealth,
	TagWorkloadStalled: analyzeWorkloadStalled,
	TagNetworkStall:    analyzeNetworkStall,
	TagNetworkDrop:     analyzeNetworkDrop,
	TagStorageIoError:  analyzeStorageIoError,
	TagStorageSlow:     analyzeStorageSlow,
	TagProcessBlocked:  analyzeProcessBlocked,
	TagProcessCrash:    analyzeProcessCrash,
}

// Analyze runs every analyzer in Order against the subject pid and returns
// the first report produced, matching the query engine's "first matching
// SceneReport" contract (spec §4.6).
func Analyze(snap graph.Snapshot, pid int) (Report, bool) {
	for _, tag := range Order {
		if report, ok := registry[tag](snap, pid); ok {
			return report, true
		}
	}
	return Report{}, false
}

// consumesEdgesFor returns the Resource nodes the subject process Consumes.
func consumesEdgesFor(snap graph.Snapshot, procID string) []graph.Node {
	var out []graph.Node
	for _, e := range snap.Edges {
		if e.Kind != graph.EdgeConsumes || string(e.From) != procID {
			continue
		}
		if n, ok := snap.Nodes[string(e.To)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// waitsOnFor returns the Resource nodes the subject process WaitsOn.
func waitsOnFor(snap graph.Snapshot, procID string) []graph.Node {
	var out []graph.Node
	for _, e := range snap.Edges {
		if e.Kind != graph.EdgeWaitsOn || string(e.From) != procID {
			continue
		}
		if n, ok := snap.Nodes[string(e.To)]; ok {
			out = append(out, n)
		}
	}
	return out
}

func isNetworkOrStorage(n graph.Node) bool {
	class := n.Metadata["class"]
	switch class {
	case "nic", "link", "storage", "socket-endpoint":
		return true
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
