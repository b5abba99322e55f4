// Package match implements indexed, linear-time identifier joins.
package match

import (
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
)

// KeyFunc maps a raw value to its canonical index key. A non-nil error
// means the value cannot be keyed (usually a *normalize.NotRecognizedError).
type KeyFunc func(raw string) (string, error)

// KeyFor returns a KeyFunc that normalizes values as entity type t.
func KeyFor(n *normalize.Normalizer, t model.EntityType) KeyFunc {
	return func(raw string) (string, error) {
		return n.Normalize(raw, t)
	}
}

// Ref points at one record of the indexed dataset.
type Ref struct {
	Pos int    // record position in the indexed dataset
	ID  string // identifier value of that record
}

// OpCounter tallies index operations. A nil *OpCounter is valid and counts nothing.
type OpCounter struct {
	Inserts int
	Lookups int
}

// Total returns inserts plus lookups.
func (c *OpCounter) Total() int {
	if c == nil {
		return 0
	}
	return c.Inserts + c.Lookups
}

func (c *OpCounter) insert() {
	if c != nil {
		c.Inserts++
	}
}

func (c *OpCounter) lookup() {
	if c != nil {
		c.Lookups++
	}
}

// Index maps canonical keys to every record carrying that key. Collisions
// are kept, never overwritten. An Index is read-only once built.
type Index struct {
	entries  map[string][]Ref
	rows     int
	rejected int
	ops      *OpCounter
}

// BuildIndex indexes field of every record in ds in a single pass. Records
// whose value cannot be keyed are counted and skipped. The record id stored
// in each Ref is taken from ds.IDField.
func BuildIndex(ds *model.Dataset, field string, key KeyFunc, ops *OpCounter) *Index {
	if field == "" {
		field = ds.IDField
	}
	idx := &Index{
		entries: make(map[string][]Ref, ds.Len()),
		ops:     ops,
	}
	for i, rec := range ds.Records {
		idx.rows++
		k, err := key(rec[field])
		if err != nil {
			idx.rejected++
			continue
		}
		idx.entries[k] = append(idx.entries[k], Ref{Pos: i, ID: rec[ds.IDField]})
		ops.insert()
	}
	return idx
}

// Lookup returns the records indexed under key. The returned slice must not be modified.
func (idx *Index) Lookup(key string) []Ref {
	idx.ops.lookup()
	return idx.entries[key]
}

// Keys returns the number of distinct keys.
func (idx *Index) Keys() int { return len(idx.entries) }

// Rows returns the number of records scanned while building.
func (idx *Index) Rows() int { return idx.rows }

// Rejected returns the number of records that could not be keyed.
func (idx *Index) Rejected() int { return idx.rejected }
