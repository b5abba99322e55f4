// Package pipeline runs strategies: ordered steps of registered actions over
// one shared execution context.
package pipeline

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// Context is the state shared by every step of a strategy run. It is owned
// by the executor and handed to one action at a time, so it holds no locks.
type Context struct {
	RunID string

	datasets   map[string]*model.Dataset
	matches    map[string][]model.MatchRecord
	stats      map[string]float64
	provenance []model.ProvenanceEvent
}

// NewContext creates an empty context with a fresh run id.
func NewContext() *Context {
	return &Context{
		RunID:    uuid.NewString(),
		datasets: make(map[string]*model.Dataset),
		matches:  make(map[string][]model.MatchRecord),
		stats:    make(map[string]float64),
	}
}

// SetDataset stores ds under name, replacing any previous dataset.
func (c *Context) SetDataset(name string, ds *model.Dataset) {
	if ds.Name == "" {
		ds.Name = name
	}
	c.datasets[name] = ds
}

// Dataset returns the dataset stored under name.
func (c *Context) Dataset(name string) (*model.Dataset, error) {
	ds, ok := c.datasets[name]
	if !ok {
		return nil, eris.Errorf("context: no dataset %q", name)
	}
	return ds, nil
}

// HasDataset reports whether a dataset named name exists.
func (c *Context) HasDataset(name string) bool {
	_, ok := c.datasets[name]
	return ok
}

// DatasetNames returns all dataset names, sorted.
func (c *Context) DatasetNames() []string {
	return sortedNames(c.datasets)
}

// SetMatches replaces the match set stored under name.
func (c *Context) SetMatches(name string, matches []model.MatchRecord) {
	c.matches[name] = matches
}

// AppendMatches adds matches to the set stored under name.
func (c *Context) AppendMatches(name string, matches ...model.MatchRecord) {
	c.matches[name] = append(c.matches[name], matches...)
}

// Matches returns the match set stored under name.
func (c *Context) Matches(name string) ([]model.MatchRecord, error) {
	m, ok := c.matches[name]
	if !ok {
		return nil, eris.Errorf("context: no match set %q", name)
	}
	return m, nil
}

// MatchSetNames returns all match set names, sorted.
func (c *Context) MatchSetNames() []string {
	return sortedNames(c.matches)
}

// SetStat sets a statistic.
func (c *Context) SetStat(name string, v float64) {
	c.stats[name] = v
}

// AddStat increments a statistic by delta.
func (c *Context) AddStat(name string, delta float64) {
	c.stats[name] += delta
}

// MergeStats sets every statistic in m.
func (c *Context) MergeStats(m map[string]float64) {
	for k, v := range m {
		c.stats[k] = v
	}
}

// Stat returns a statistic and whether it was set.
func (c *Context) Stat(name string) (float64, bool) {
	v, ok := c.stats[name]
	return v, ok
}

// Stats returns a copy of all statistics.
func (c *Context) Stats() map[string]float64 {
	out := make(map[string]float64, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// Record appends events to the provenance log, assigning sequence numbers
// and timestamps.
func (c *Context) Record(events ...model.ProvenanceEvent) {
	for _, ev := range events {
		ev.Seq = len(c.provenance) + 1
		if ev.At.IsZero() {
			ev.At = time.Now().UTC()
		}
		c.provenance = append(c.provenance, ev)
	}
}

// Provenance returns a copy of the provenance log in recording order.
func (c *Context) Provenance() []model.ProvenanceEvent {
	return append([]model.ProvenanceEvent(nil), c.provenance...)
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
