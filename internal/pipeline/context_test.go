package pipeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/model"
)

func TestNewContext_RunID(t *testing.T) {
	a, b := NewContext(), NewContext()
	_, err := uuid.Parse(a.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestContext_Datasets(t *testing.T) {
	ec := NewContext()
	ds := model.NewDataset("", "id", "id")
	ec.SetDataset("proteins", ds)

	got, err := ec.Dataset("proteins")
	require.NoError(t, err)
	assert.Equal(t, "proteins", got.Name)
	assert.True(t, ec.HasDataset("proteins"))

	ec.SetDataset("alpha", model.NewDataset("alpha", "id"))
	assert.Equal(t, []string{"alpha", "proteins"}, ec.DatasetNames())

	_, err = ec.Dataset("missing")
	assert.Error(t, err)
}

func TestContext_Matches(t *testing.T) {
	ec := NewContext()
	m := model.NewMatch("P1", "Q1", model.StageDirect, 1, model.MatchDirect)

	ec.AppendMatches("out", m)
	ec.AppendMatches("out", m)
	got, err := ec.Matches("out")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ec.SetMatches("out", nil)
	got, err = ec.Matches("out")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"out"}, ec.MatchSetNames())

	_, err = ec.Matches("other")
	assert.Error(t, err)
}

func TestContext_Stats(t *testing.T) {
	ec := NewContext()
	ec.AddStat("n", 2)
	ec.AddStat("n", 3)
	ec.SetStat("rate", 0.5)
	ec.MergeStats(map[string]float64{"rate": 0.75, "m": 1})

	v, ok := ec.Stat("n")
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)

	stats := ec.Stats()
	assert.Equal(t, 0.75, stats["rate"])
	stats["n"] = 100
	v, _ = ec.Stat("n")
	assert.Equal(t, 5.0, v, "Stats returns a copy")

	_, ok = ec.Stat("missing")
	assert.False(t, ok)
}

func TestContext_ProvenanceSequence(t *testing.T) {
	ec := NewContext()
	ec.Record(model.ProvenanceEvent{Kind: model.EventStep, Status: model.StatusOK})
	ec.Record(
		model.ProvenanceEvent{Kind: model.EventStage, Stage: model.StageDirect, Status: model.StatusOK},
		model.ProvenanceEvent{Kind: model.EventFilter, Status: model.StatusOK},
	)

	prov := ec.Provenance()
	require.Len(t, prov, 3)
	for i, ev := range prov {
		assert.Equal(t, i+1, ev.Seq)
		assert.False(t, ev.At.IsZero())
	}
	assert.Equal(t, model.EventFilter, prov[2].Kind)

	prov[0].Status = "mutated"
	assert.Equal(t, model.StatusOK, ec.Provenance()[0].Status)
}
