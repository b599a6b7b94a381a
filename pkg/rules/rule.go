// Package rules implements the declarative rule engine (spec §4.4,
// component C4): YAML rule definitions, a condition-tree evaluator over a
// graph snapshot plus the recent event tail, and priority-based selection.
package rules

// Rule is one loaded rule definition.
type Rule struct {
	Name             string           `yaml:"name"`
	Scene            string           `yaml:"scene"`
	Priority         int              `yaml:"priority"`
	Conditions       Condition        `yaml:"conditions"`
	RootCausePattern RootCausePattern `yaml:"root_cause_pattern"`
	SolutionSteps    []string         `yaml:"solution_steps"`
	RelatedEvidences []string         `yaml:"related_evidences"`
	Applicability    Applicability    `yaml:"applicability"`
}

// RootCausePattern is the rule's contribution to a why/diag report.
type RootCausePattern struct {
	Primary   string   `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
}

// Applicability gates whether a matched rule is confident enough to report.
type Applicability struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

// Condition is one node of a condition tree. Exactly one of the fields
// should be set per rule author; All/Any are internal nodes, the other
// three are leaves.
type Condition struct {
	All []Condition `yaml:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty"`

	Event  *EventCondition  `yaml:"event,omitempty"`
	Graph  *GraphCondition  `yaml:"graph,omitempty"`
	Metric *MetricCondition `yaml:"metric,omitempty"`
}

// EventCondition matches against the recent event tail by kind, an
// entity-id glob, a value substring, and/or an explicit numeric threshold.
type EventCondition struct {
	Kind           string            `yaml:"kind"`
	EntityIDGlob   string            `yaml:"entity_id_glob,omitempty"`
	ValueContains  string            `yaml:"value_contains,omitempty"`
	ValueThreshold *NumericThreshold `yaml:"value_threshold,omitempty"`
}

// GraphCondition matches against an edge kind plus from/to id globs.
type GraphCondition struct {
	EdgeKind string `yaml:"edge_kind"`
	FromGlob string `yaml:"from_glob,omitempty"`
	ToGlob   string `yaml:"to_glob,omitempty"`
}

// Operator is one of the closed set of metric/threshold comparators.
type Operator string

const (
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpEQ       Operator = "eq"
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
	OpNE       Operator = "ne"
	OpContains Operator = "contains"
)

// NumericThreshold is an explicitly-typed numeric comparator, used where a
// condition leaf needs to distinguish a number from a string sentinel.
type NumericThreshold struct {
	Op    Operator `yaml:"op"`
	Value float64  `yaml:"value"`
}

// MetricCondition matches a node metadata key on nodes whose id matches a
// glob, using one of the typed operators. contains always matches a
// substring. For every other operator the comparison is numeric when both
// the metadata value and Target parse as floats; otherwise eq/ne compare
// the strings and the ordinal operators do not match.
type MetricCondition struct {
	NodeIDGlob string   `yaml:"node_id_glob"`
	Key        string   `yaml:"key"`
	Op         Operator `yaml:"op"`
	Target     string   `yaml:"target"`
}
