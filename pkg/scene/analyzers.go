package scene

import (
	"fmt"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
)

// NpuTemperatureThreshold and friends back the NpuSubhealth contract.
const (
	NpuTemperatureThreshold   = 85.0
	NpuFrequencyRatioMinimum  = 0.9
	GpuUtilLowThresholdPct    = 1.0
	WorkloadStalledThreshold  = 1.0
)

// analyzeGpuOom reports when a gpu resource the subject Consumes carries
// metadata oom == "true". No other signal (mem_pct, error codes) is
// consulted.
func analyzeGpuOom(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "gpu" {
			continue
		}
		if r.Metadata["oom"] == "true" {
			return Report{
				SceneTag:         TagGpuOom,
				Severity:         SeverityCritical,
				RootCausePrimary: fmt.Sprintf("%s ran out of memory", r.ID),
				EvidenceNodeIDs:  []string{r.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeGpuUtilLow reports a running subject with a Consumes-linked gpu
// below 1% utilisation. It sits late in Order, so the WorkloadStalled and
// blocked/network/storage reports take precedence over it.
func analyzeGpuUtilLow(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok || proc.State != "running" {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "gpu" {
			continue
		}
		util, ok := parseFloat(r.Metadata["util_pct"])
		if ok && util < GpuUtilLowThresholdPct {
			return Report{
				SceneTag:         TagGpuUtilLow,
				Severity:         SeverityInfo,
				RootCausePrimary: fmt.Sprintf("%s utilisation below 1%%", r.ID),
				EvidenceNodeIDs:  []string{r.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeGpuError reports at least one BlockedBy edge from a compute
// resource the subject Consumes to an error.hw within the window (spec
// §4.5).
func analyzeGpuError(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "gpu" {
			continue
		}
		for _, e := range snap.Edges {
			if e.Kind != graph.EdgeBlockedBy || string(e.From) != r.ID {
				continue
			}
			errNode, ok := snap.Nodes[string(e.To)]
			if !ok || errNode.Kind != graph.KindError {
				continue
			}
			if _, hw := errNode.EventKinds[string(bus.KindErrorHW)]; !hw {
				continue
			}
			return Report{
				SceneTag:         TagGpuError,
				Severity:         SeverityCritical,
				RootCausePrimary: fmt.Sprintf("%s: %s", r.ID, errNode.Metadata["code"]),
				EvidenceNodeIDs:  []string{r.ID, errNode.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeNpuSubhealth reports a Consumes-linked NPU with a degraded
// thermal/lane/frequency reading (spec §4.5).
func analyzeNpuSubhealth(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "npu" {
			continue
		}
		if temp, ok := parseFloat(r.Metadata["temperature"]); ok && temp > NpuTemperatureThreshold {
			return npuReport(r, fmt.Sprintf("%s temperature %.1f > %.0f", r.ID, temp, NpuTemperatureThreshold))
		}
		if r.Metadata["hccs_lane_status"] == "degraded" {
			return npuReport(r, fmt.Sprintf("%s hccs lane degraded", r.ID))
		}
		freq, freqOK := parseFloat(r.Metadata["frequency"])
		maxFreq, maxOK := parseFloat(r.Metadata["max_frequency"])
		if freqOK && maxOK && maxFreq > 0 && freq < NpuFrequencyRatioMinimum*maxFreq {
			return npuReport(r, fmt.Sprintf("%s frequency %.1f below %.0f%% of max", r.ID, freq, NpuFrequencyRatioMinimum*100))
		}
	}
	return Report{}, false
}

func npuReport(r graph.Node, reason string) (Report, bool) {
	return Report{
		SceneTag:         TagNpuSubhealth,
		Severity:         SeverityWarning,
		RootCausePrimary: reason,
		EvidenceNodeIDs:  []string{r.ID},
	}, true
}

// analyzeWorkloadStalled reports a running subject whose every
// Consumes-linked compute resource is under 1% utilisation and which has
// no outgoing WaitsOn edge to a network or storage resource — distinguishing deadlock from legitimate
// data-preprocessing I/O waits (spec §4.5).
func analyzeWorkloadStalled(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok || proc.State != "running" {
		return Report{}, false
	}

	compute := 0
	lowUtil := 0
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "gpu" && r.Metadata["class"] != "npu" {
			continue
		}
		compute++
		if util, ok := parseFloat(r.Metadata["util_pct"]); ok && util < WorkloadStalledThreshold {
			lowUtil++
		}
	}
	if compute == 0 || lowUtil != compute {
		return Report{}, false
	}
	for _, r := range waitsOnFor(snap, proc.ID) {
		if isNetworkOrStorage(r) {
			return Report{}, false
		}
	}

	return Report{
		SceneTag:         TagWorkloadStalled,
		Severity:         SeverityWarning,
		RootCausePrimary: "workload is running but not consuming compute and not waiting on I/O",
	}, true
}

// analyzeNetworkStall reports a WaitsOn edge to a nic/link resource.
func analyzeNetworkStall(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range waitsOnFor(snap, proc.ID) {
		if r.Metadata["class"] == "nic" || r.Metadata["class"] == "link" {
			return Report{
				SceneTag:         TagNetworkStall,
				Severity:         SeverityWarning,
				RootCausePrimary: fmt.Sprintf("waiting on %s", r.ID),
				EvidenceNodeIDs:  []string{r.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeNetworkDrop reports a network resource with an elevated
// drop_count that the subject Consumes.
func analyzeNetworkDrop(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "nic" && r.Metadata["class"] != "link" {
			continue
		}
		if count, ok := parseFloat(r.Metadata["drop_count"]); ok && count > 0 {
			return Report{
				SceneTag:         TagNetworkDrop,
				Severity:         SeverityWarning,
				RootCausePrimary: fmt.Sprintf("%s reporting packet drops", r.ID),
				EvidenceNodeIDs:  []string{r.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeStorageIoError reports a BlockedBy edge from a storage resource
// the subject Consumes to an error node.
func analyzeStorageIoError(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range consumesEdgesFor(snap, proc.ID) {
		if r.Metadata["class"] != "storage" {
			continue
		}
		for _, e := range snap.Edges {
			if e.Kind != graph.EdgeBlockedBy || string(e.From) != r.ID {
				continue
			}
			errNode, ok := snap.Nodes[string(e.To)]
			if !ok || errNode.Kind != graph.KindError {
				continue
			}
			return Report{
				SceneTag:         TagStorageIoError,
				Severity:         SeverityCritical,
				RootCausePrimary: fmt.Sprintf("%s: %s", r.ID, errNode.Metadata["code"]),
				EvidenceNodeIDs:  []string{r.ID, errNode.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeStorageSlow reports a WaitsOn edge to a storage resource (queue
// depth saturation without a hard error).
func analyzeStorageSlow(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	for _, r := range waitsOnFor(snap, proc.ID) {
		if r.Metadata["class"] == "storage" {
			return Report{
				SceneTag:         TagStorageSlow,
				Severity:         SeverityWarning,
				RootCausePrimary: fmt.Sprintf("waiting on saturated %s", r.ID),
				EvidenceNodeIDs:  []string{r.ID},
			}, true
		}
	}
	return Report{}, false
}

// analyzeProcessBlocked reports any WaitsOn edge from the subject,
// populating RootCauseSecondary with the reachable errors (spec §4.5).
func analyzeProcessBlocked(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok {
		return Report{}, false
	}
	waits := waitsOnFor(snap, proc.ID)
	if len(waits) == 0 {
		return Report{}, false
	}

	evidence := make([]string, 0, len(waits))
	for _, r := range waits {
		evidence = append(evidence, r.ID)
	}

	var secondary []string
	for _, c := range snap.WhyPID(pid) {
		if c.Kind != graph.CauseError {
			continue
		}
		secondary = append(secondary, c.Message)
	}

	return Report{
		SceneTag:           TagProcessBlocked,
		Severity:           SeverityWarning,
		RootCausePrimary:   fmt.Sprintf("process %d is blocked", pid),
		RootCauseSecondary: secondary,
		EvidenceNodeIDs:    evidence,
	}, true
}

// analyzeProcessCrash reports a subject observed in a terminal state. It
// does not look for errors on the subject's consumed resources.
func analyzeProcessCrash(snap graph.Snapshot, pid int) (Report, bool) {
	proc, ok := snap.ProcessByPID(pid)
	if !ok || !proc.Terminal {
		return Report{}, false
	}
	return Report{
		SceneTag:         TagProcessCrash,
		Severity:         SeverityWarning,
		RootCausePrimary: fmt.Sprintf("process %d exited (%s)", pid, proc.State),
	}, true
}
