package resolve

import (
	"github.com/sells-group/biomap-cli/internal/match"
	"github.com/sells-group/biomap-cli/internal/model"
)

// WorkingSet is the materialized set of still-unmatched source rows.
// It is immutable: Without returns a new set.
type WorkingSet struct {
	source  *model.Dataset
	pending []int
}

// NewWorkingSet starts with every row of source pending.
func NewWorkingSet(source *model.Dataset) *WorkingSet {
	pending := make([]int, source.Len())
	for i := range pending {
		pending[i] = i
	}
	return &WorkingSet{source: source, pending: pending}
}

// Len returns the number of pending rows.
func (ws *WorkingSet) Len() int { return len(ws.pending) }

// Sources returns pending rows as matcher sources keyed on field.
func (ws *WorkingSet) Sources(field string) []match.Source {
	if field == "" {
		field = ws.source.IDField
	}
	out := make([]match.Source, 0, len(ws.pending))
	for _, p := range ws.pending {
		rec := ws.source.Records[p]
		out = append(out, match.Source{ID: rec[ws.source.IDField], Value: rec[field]})
	}
	return out
}

// Without returns a new working set minus every row whose identifier is in matched.
func (ws *WorkingSet) Without(matched map[string]struct{}) *WorkingSet {
	next := make([]int, 0, len(ws.pending))
	for _, p := range ws.pending {
		if _, ok := matched[ws.source.ID(p)]; !ok {
			next = append(next, p)
		}
	}
	return &WorkingSet{source: ws.source, pending: next}
}

// IDs returns the identifiers of pending rows in source order.
func (ws *WorkingSet) IDs() []string {
	out := make([]string, 0, len(ws.pending))
	for _, p := range ws.pending {
		out = append(out, ws.source.ID(p))
	}
	return out
}

// Identifiers returns pending identifiers tagged with t.
func (ws *WorkingSet) Identifiers(t model.EntityType) []model.Identifier {
	out := make([]model.Identifier, 0, len(ws.pending))
	for _, p := range ws.pending {
		out = append(out, model.Identifier{Raw: ws.source.ID(p), Type: t})
	}
	return out
}

// Dataset materializes the pending rows as a new dataset.
func (ws *WorkingSet) Dataset(name string) *model.Dataset {
	return ws.source.Subset(name, ws.pending)
}
