package model

import "time"

// EventKind classifies a provenance event.
type EventKind string

const (
	EventStep          EventKind = "step"
	EventStage         EventKind = "stage"
	EventNormalization EventKind = "normalization"
	EventFilter        EventKind = "filter"
)

// Status values shared by steps and stages.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ProvenanceEvent is one entry of the ordered audit log kept on the
// execution context.
type ProvenanceEvent struct {
	Seq      int           `json:"seq"`
	Kind     EventKind     `json:"kind"`
	Step     string        `json:"step,omitempty"`
	Action   string        `json:"action,omitempty"`
	Stage    StageName     `json:"stage,omitempty"`
	Status   string        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Message  string        `json:"message,omitempty"`
	Affected int           `json:"affected"`
	Matches  []MatchRecord `json:"matches,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	At       time.Time     `json:"at"`
}
