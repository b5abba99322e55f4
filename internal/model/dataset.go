package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Record is a single row of a dataset keyed by field name.
type Record map[string]string

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is an ordered sequence of records with one designated identifier field.
type Dataset struct {
	Name    string   `json:"name"`
	IDField string   `json:"id_field"`
	Columns []string `json:"columns,omitempty"`
	Records []Record `json:"records"`
}

// NewDataset creates an empty dataset.
func NewDataset(name, idField string, columns ...string) *Dataset {
	return &Dataset{Name: name, IDField: idField, Columns: columns}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Append adds a record, registering any unseen columns in first-seen order.
func (d *Dataset) Append(r Record) {
	seen := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		seen[c] = true
	}
	for _, k := range sortedKeys(r) {
		if !seen[k] {
			d.Columns = append(d.Columns, k)
		}
	}
	d.Records = append(d.Records, r)
}

// ID returns the identifier value of record i.
func (d *Dataset) ID(i int) string {
	return d.Records[i][d.IDField]
}

// Validate checks that the identifier field is set.
func (d *Dataset) Validate() error {
	if d == nil {
		return eris.New("dataset: nil dataset")
	}
	if d.IDField == "" {
		return eris.Errorf("dataset %q: no identifier field", d.Name)
	}
	return nil
}

// Subset returns a new dataset holding the records at the given positions, in order.
func (d *Dataset) Subset(name string, positions []int) *Dataset {
	out := &Dataset{
		Name:    name,
		IDField: d.IDField,
		Columns: append([]string(nil), d.Columns...),
		Records: make([]Record, 0, len(positions)),
	}
	for _, p := range positions {
		out.Records = append(out.Records, d.Records[p])
	}
	return out
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
