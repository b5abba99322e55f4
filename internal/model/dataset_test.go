package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_AppendTracksColumns(t *testing.T) {
	ds := NewDataset("src", "id", "id")
	ds.Append(Record{"id": "P1", "gene": "TP53"})
	ds.Append(Record{"id": "P2", "alias": "x"})

	assert.Equal(t, []string{"id", "gene", "alias"}, ds.Columns)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "P2", ds.ID(1))
}

func TestDataset_Subset(t *testing.T) {
	ds := NewDataset("src", "id")
	for _, id := range []string{"a", "b", "c"} {
		ds.Append(Record{"id": id})
	}

	sub := ds.Subset("left", []int{2, 0})
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, "left", sub.Name)
	assert.Equal(t, "c", sub.ID(0))
	assert.Equal(t, "a", sub.ID(1))
}

func TestDataset_Validate(t *testing.T) {
	var nilDS *Dataset
	assert.Error(t, nilDS.Validate())
	assert.Error(t, (&Dataset{Name: "x"}).Validate())
	assert.NoError(t, NewDataset("x", "id").Validate())
	assert.Equal(t, 0, nilDS.Len())
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("")
	require.NoError(t, err)
	assert.Equal(t, EntityGeneric, et)

	et, err = ParseEntityType("metabolite_hmdb")
	require.NoError(t, err)
	assert.Equal(t, EntityHMDB, et)

	_, err = ParseEntityType("nope")
	assert.Error(t, err)
}

func TestStep_Defaults(t *testing.T) {
	s := Step{Action: "match_direct"}
	assert.True(t, s.IsRequired())
	assert.Equal(t, "match_direct", s.Label())

	no := false
	s.Required = &no
	s.Name = "direct"
	assert.False(t, s.IsRequired())
	assert.Equal(t, "direct", s.Label())
}
