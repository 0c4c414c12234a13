package transcript

import "time"

// Turn is one produced content unit attributed to an actor slot.
type Turn struct {
	ActorIndex int    `json:"actor_index"`
	Content    string `json:"content"`
}

// AnomalyKind classifies a soft structural finding.
type AnomalyKind string

const (
	// AnomalyRoundRobin: turn order deviates from strict round robin.
	AnomalyRoundRobin AnomalyKind = "round-robin"
	// AnomalyActorDiscovery: the legacy layout's delimiter scan found fewer
	// actors than the header promised.
	AnomalyActorDiscovery AnomalyKind = "actor-discovery"
	// AnomalyHeader: header fields disagree with each other (counts,
	// unparseable values); the parsed values are kept.
	AnomalyHeader AnomalyKind = "header"
)

// Anomaly is a structural finding that did not abort parsing. Downstream
// recreation decides whether to proceed; the parser only reports.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Record is the structured form of one transcript. It is derived, read-only
// data: the parser never normalizes content (byte-for-byte, control
// sequences included) and never writes back to the source file.
type Record struct {
	// Actors holds display names in slot order.
	Actors []string `json:"actors"`
	// BackendIDs holds the header's backend identifiers in slot order:
	// wire-level model names or key aliases depending on the layout
	// generation.
	BackendIDs []string `json:"backend_ids"`
	// SystemPrompts[i] is nil when the source never recorded slot i's prompt.
	// nil means unknown; a known-empty prompt is a non-nil pointer to "".
	SystemPrompts []*string `json:"system_prompts"`
	// Turns in file order.
	Turns []Turn `json:"turns"`
	// Timestamp is the run start recovered from the header or filename.
	Timestamp time.Time `json:"timestamp"`
	// Temperatures per actor slot; nil when the layout has no temp line.
	Temperatures []float64 `json:"temperatures,omitempty"`
	// Template is the scenario/template name, "" when unknown.
	Template string `json:"template,omitempty"`
	// Status is the v2 header's status line verbatim, "" for layouts
	// without one.
	Status string `json:"status,omitempty"`
	// Anomalies collects soft structural findings.
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// Anomalous reports whether any structural anomaly was flagged.
func (r *Record) Anomalous() bool {
	return len(r.Anomalies) > 0
}

// flag appends an anomaly.
func (r *Record) flag(kind AnomalyKind, detail string) {
	r.Anomalies = append(r.Anomalies, Anomaly{Kind: kind, Detail: detail})
}
