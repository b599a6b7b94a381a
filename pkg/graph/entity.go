package graph

import "fmt"

// EntityKind is one of the four kinds of graph node (spec §3).
type EntityKind string

const (
	KindProcess  EntityKind = "Process"
	KindResource EntityKind = "Resource"
	KindError    EntityKind = "Error"
	KindHost     EntityKind = "Host"
)

// ResourceClass is the closed set of resource classes a Resource node may
// belong to.
type ResourceClass string

const (
	ResourceGPU             ResourceClass = "gpu"
	ResourceNPU             ResourceClass = "npu"
	ResourceNIC             ResourceClass = "nic"
	ResourceLink            ResourceClass = "link"
	ResourceStorage         ResourceClass = "storage"
	ResourceSocketEndpoint  ResourceClass = "socket-endpoint"
)

// Node is a graph entity. Every node carries a free-form metadata map and a
// monotonic last-update timestamp (the max ts_ms of any event that touched
// it, spec §3 invariant 2).
type Node struct {
	Kind         EntityKind
	ID           string
	Metadata     map[string]string
	LastUpdateMs int64

	// EventKinds is the set of event kinds that have ever touched this
	// node, used by pkg/query's diag packet ("the set of event kinds
	// referenced", spec §4.6).
	EventKinds map[string]struct{}

	// Process-only.
	PID       int
	JobID     string
	State     string // start, running, exit, zombie
	Terminal  bool
	ExitAtMs  int64 // set when Terminal flips true; grace eviction anchors here

	// Error-only.
	FirstSeenMs int64
}

// NodeID returns the namespaced node identity string used as the graph's
// map key, "<Kind>:<id>": the id part is the pid for Process nodes, the raw
// entity id for Resource/Host nodes, and "<entity_id>/<code>" for Error
// nodes (so `Error:gpu-0/XID_79`).
func NodeID(kind EntityKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

func processNodeID(pid int) string {
	return NodeID(KindProcess, fmt.Sprintf("%d", pid))
}

func resourceNodeID(entityID string) string {
	return NodeID(KindResource, entityID)
}

func errorNodeID(entityID, code string) string {
	return NodeID(KindError, fmt.Sprintf("%s/%s", entityID, code))
}

func hostNodeID(hostID string) string {
	return NodeID(KindHost, hostID)
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (n Node) clone() Node {
	n.Metadata = cloneMetadata(n.Metadata)
	kinds := make(map[string]struct{}, len(n.EventKinds))
	for k := range n.EventKinds {
		kinds[k] = struct{}{}
	}
	n.EventKinds = kinds
	return n
}
