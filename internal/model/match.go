package model

import "sort"

// StageName identifies a resolution stage.
type StageName string

const (
	StageDirect     StageName = "direct"
	StageComposite  StageName = "composite_expansion"
	StageHistorical StageName = "historical_resolution"
	StageBridge     StageName = "bridge"
)

// MatchType describes how a match was established.
type MatchType string

const (
	MatchDirect             MatchType = "direct"
	MatchCompositeExpansion MatchType = "composite_expansion"
	MatchHistorical         MatchType = "historical"
	MatchBridge             MatchType = "bridge"
)

// MatchRecord links one source identifier to one target identifier.
// SourceID is always the original source value, composite or not.
type MatchRecord struct {
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Stage      StageName `json:"stage"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
}

// NewMatch builds a MatchRecord with confidence clamped to [0,1].
func NewMatch(sourceID, targetID string, stage StageName, confidence float64, mt MatchType) MatchRecord {
	return MatchRecord{
		SourceID:   sourceID,
		TargetID:   targetID,
		Stage:      stage,
		Confidence: ClampConfidence(confidence),
		MatchType:  mt,
	}
}

// ClampConfidence bounds c to [0,1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	switch {
	case c != c:
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// FilterByConfidence splits matches into those at or above min and those below.
// Order is preserved in both halves.
func FilterByConfidence(matches []MatchRecord, min float64) (kept, dropped []MatchRecord) {
	for _, m := range matches {
		if m.Confidence >= min {
			kept = append(kept, m)
		} else {
			dropped = append(dropped, m)
		}
	}
	return kept, dropped
}

// SortMatches orders matches by source id, then target id, then stage.
func SortMatches(matches []MatchRecord) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Stage < b.Stage
	})
}

// MatchedSourceIDs returns the set of source ids that appear in matches.
func MatchedSourceIDs(matches []MatchRecord) map[string]struct{} {
	out := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		out[m.SourceID] = struct{}{}
	}
	return out
}
