package graph

import (
	"fmt"
	"sort"
)

// MaxRootCauseDepth is the default reverse-DFS depth limit (spec §4.3).
const MaxRootCauseDepth = 8

// CauseKind distinguishes the two ways a root-cause walk branch terminates.
type CauseKind string

const (
	CauseError    CauseKind = "Error"
	CauseResource CauseKind = "Resource"
)

// Cause is one entry in the ordered, deduplicated output of WhyPID.
type Cause struct {
	Kind    CauseKind
	ID      string
	Message string
}

// WhyPID performs the reverse root-cause walk from a Process (spec §4.3
// "Reverse root-cause walk"): a reverse traversal over WaitsOn and
// BlockedBy edges, terminating a branch at an Error node (root cause), at
// a Resource node with no further outgoing cause edges (waiting on
// resource), or at the cycle/depth limit. The result is ordered,
// deduplicated by (kind, id), preserving first-encounter order.
func (s Snapshot) WhyPID(pid int) []Cause {
	start, ok := s.ProcessByPID(pid)
	if !ok {
		return nil
	}

	visited := make(map[string]struct{})
	seen := make(map[string]struct{})
	var causes []Cause

	var walk func(nodeID string, depth int)
	walk = func(nodeID string, depth int) {
		if depth > MaxRootCauseDepth {
			return
		}
		if _, ok := visited[nodeID]; ok {
			return
		}
		visited[nodeID] = struct{}{}

		edges := s.outgoing(nodeID, EdgeWaitsOn, EdgeBlockedBy)
		sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })

		if len(edges) == 0 {
			if n, ok := s.Nodes[nodeID]; ok && n.Kind == KindResource {
				addCause(&causes, seen, Cause{
					Kind:    CauseResource,
					ID:      n.ID,
					Message: fmt.Sprintf("waiting on %s", n.ID),
				})
			}
			return
		}

		for _, e := range edges {
			toID := string(e.To)
			n, ok := s.Nodes[toID]
			if !ok {
				continue
			}
			if n.Kind == KindError {
				addCause(&causes, seen, Cause{
					Kind:    CauseError,
					ID:      n.ID,
					Message: fmt.Sprintf("root cause: %s", n.Metadata["code"]),
				})
				continue
			}
			walk(toID, depth+1)
		}
	}

	walk(start.ID, 0)
	return causes
}

func addCause(causes *[]Cause, seen map[string]struct{}, c Cause) {
	key := string(c.Kind) + ":" + c.ID
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	*causes = append(*causes, c)
}
