package rules

import (
	"sort"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/graph"
	"github.com/sentinelgraph/sentinel/pkg/metrics"
)

// Match gathers every rule whose condition tree currently holds, then
// returns the highest-priority match; ties on priority break by
// lexicographic rule name ascending, so selection is deterministic without
// depending on load or slice order (spec §4.4).
func Match(rules []Rule, snap graph.Snapshot, events []bus.Event) (Rule, bool) {
	var matching []Rule
	for _, r := range rules {
		if Evaluate(r.Conditions, snap, events) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return Rule{}, false
	}

	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Priority != matching[j].Priority {
			return matching[i].Priority > matching[j].Priority
		}
		return matching[i].Name < matching[j].Name
	})

	winner := matching[0]
	metrics.RuleMatchesTotal.WithLabelValues(winner.Name).Inc()
	return winner, true
}
