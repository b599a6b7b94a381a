package graph

// EdgeKind is one of the three directed causal edge kinds (spec §3).
type EdgeKind string

const (
	// EdgeConsumes is Process -> Resource, present while the process uses it.
	EdgeConsumes EdgeKind = "Consumes"
	// EdgeWaitsOn is Process -> Resource, present while blocked on I/O.
	EdgeWaitsOn EdgeKind = "WaitsOn"
	// EdgeBlockedBy is Process -> Error or Resource -> Error.
	EdgeBlockedBy EdgeKind = "BlockedBy"
)

// Edge is a directed, timestamped, idempotent-on-(from,to,kind) causal edge.
type Edge struct {
	From EdgeEndpoint
	To   EdgeEndpoint
	Kind EdgeKind
	TsMs int64
}

// EdgeEndpoint identifies an edge endpoint by the node's map key.
type EdgeEndpoint string

func endpointOf(nodeID string) EdgeEndpoint {
	return EdgeEndpoint(nodeID)
}

// key returns the (from, to, kind) idempotence key spec §3 requires.
type edgeKey struct {
	From EdgeEndpoint
	To   EdgeEndpoint
	Kind EdgeKind
}

func (e Edge) key() edgeKey {
	return edgeKey{From: e.From, To: e.To, Kind: e.Kind}
}
