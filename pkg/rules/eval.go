package rules

import (
	"path"
	"strconv"
	"strings"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
)

// Evaluate reports whether cond holds over snap and the recent event tail.
// Evaluation is pure: no mutation, no side effects, safe to call from
// multiple readers concurrently against a shared Snapshot.
func Evaluate(cond Condition, snap graph.Snapshot, events []bus.Event) bool {
	switch {
	case len(cond.All) > 0:
		for _, c := range cond.All {
			if !Evaluate(c, snap, events) {
				return false
			}
		}
		return true
	case len(cond.Any) > 0:
		for _, c := range cond.Any {
			if Evaluate(c, snap, events) {
				return true
			}
		}
		return false
	case cond.Event != nil:
		return evalEvent(*cond.Event, events)
	case cond.Graph != nil:
		return evalGraph(*cond.Graph, snap)
	case cond.Metric != nil:
		return evalMetric(*cond.Metric, snap)
	default:
		// An empty condition node matches nothing; a rule author error, not
		// a programming bug in the evaluator.
		return false
	}
}

func evalEvent(c EventCondition, events []bus.Event) bool {
	for _, ev := range events {
		if string(ev.Kind) != c.Kind {
			continue
		}
		if c.EntityIDGlob != "" {
			if ok, _ := path.Match(c.EntityIDGlob, ev.EntityID); !ok {
				continue
			}
		}
		if c.ValueContains != "" && !strings.Contains(ev.Value, c.ValueContains) {
			continue
		}
		if c.ValueThreshold != nil {
			val, err := strconv.ParseFloat(ev.Value, 64)
			if err != nil || !compareNumeric(val, c.ValueThreshold.Op, c.ValueThreshold.Value) {
				continue
			}
		}
		return true
	}
	return false
}

func evalGraph(c GraphCondition, snap graph.Snapshot) bool {
	for _, e := range snap.Edges {
		if string(e.Kind) != c.EdgeKind {
			continue
		}
		if c.FromGlob != "" {
			if ok, _ := path.Match(c.FromGlob, string(e.From)); !ok {
				continue
			}
		}
		if c.ToGlob != "" {
			if ok, _ := path.Match(c.ToGlob, string(e.To)); !ok {
				continue
			}
		}
		return true
	}
	return false
}

func evalMetric(c MetricCondition, snap graph.Snapshot) bool {
	for id, n := range snap.Nodes {
		if ok, _ := path.Match(c.NodeIDGlob, id); !ok {
			continue
		}
		raw, ok := n.Metadata[c.Key]
		if !ok {
			continue
		}
		if compareMetric(raw, c.Op, c.Target) {
			return true
		}
	}
	return false
}

func compareMetric(raw string, op Operator, target string) bool {
	if op == OpContains {
		return strings.Contains(raw, target)
	}
	rawVal, rawErr := strconv.ParseFloat(raw, 64)
	targetVal, targetErr := strconv.ParseFloat(target, 64)
	if rawErr == nil && targetErr == nil {
		return compareNumeric(rawVal, op, targetVal)
	}
	switch op {
	case OpEQ:
		return raw == target
	case OpNE:
		return raw != target
	default:
		// Ordinal comparison requested against non-numeric data: never
		// guess, report no match.
		return false
	}
}

func compareNumeric(got float64, op Operator, want float64) bool {
	switch op {
	case OpGT:
		return got > want
	case OpLT:
		return got < want
	case OpGTE:
		return got >= want
	case OpLTE:
		return got <= want
	case OpEQ:
		return got == want
	case OpNE:
		return got != want
	default:
		return false
	}
}
