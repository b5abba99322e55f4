package resolve

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/biomap-cli/internal/model"
)

// Events converts the report into provenance events: one stage event
// carrying every produced match, followed by one normalization event per
// rejection reason.
func (rep StageReport) Events(step string) []model.ProvenanceEvent {
	now := time.Now().UTC()
	ev := model.ProvenanceEvent{
		Kind:     model.EventStage,
		Step:     step,
		Stage:    rep.Stage,
		Status:   rep.Status,
		Affected: rep.Processed,
		Matches:  rep.Matches,
		Duration: rep.Duration,
		At:       now,
		Message:  fmt.Sprintf("processed %d, matched %d", rep.Processed, rep.Matched),
	}
	if rep.Err != nil {
		ev.Reason = "stage_error"
		ev.Message = rep.Err.Error()
	}
	events := []model.ProvenanceEvent{ev}

	byReason := make(map[string]int)
	for _, r := range rep.Rejected {
		byReason[r.Reason]++
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		events = append(events, model.ProvenanceEvent{
			Kind:     model.EventNormalization,
			Step:     step,
			Stage:    rep.Stage,
			Status:   model.StatusSkipped,
			Reason:   r,
			Affected: byReason[r],
			At:       now,
			Message:  fmt.Sprintf("%d identifiers retained as unmatched", byReason[r]),
		})
	}
	return events
}

// Stats returns the numeric statistics for the report, keyed under prefix.
func (rep StageReport) Stats(prefix string) map[string]float64 {
	base := prefix + string(rep.Stage)
	failed := 0.0
	if rep.Status == model.StatusFailed {
		failed = 1
	}
	return map[string]float64{
		base + ".processed": float64(rep.Processed),
		base + ".matched":   float64(rep.Matched),
		base + ".rejected":  float64(len(rep.Rejected)),
		base + ".failed":    failed,
		base + ".ops":       float64(rep.Ops),
	}
}

// FilterEvent records matches dropped by the minimum-confidence cutoff.
// The dropped matches stay in the log for audit.
func FilterEvent(step string, min float64, dropped []model.MatchRecord) model.ProvenanceEvent {
	return model.ProvenanceEvent{
		Kind:     model.EventFilter,
		Step:     step,
		Status:   model.StatusOK,
		Reason:   "below_min_confidence",
		Affected: len(dropped),
		Matches:  dropped,
		At:       time.Now().UTC(),
		Message:  fmt.Sprintf("min_confidence %.2f removed %d matches", min, len(dropped)),
	}
}
