package match

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
)

func dataset(name string, ids ...string) *model.Dataset {
	ds := model.NewDataset(name, "id", "id")
	for _, id := range ids {
		ds.Append(model.Record{"id": id})
	}
	return ds
}

func genericKey() KeyFunc {
	return KeyFor(normalize.New(normalize.DefaultOptions()), model.EntityGeneric)
}

func TestBuildIndex_PreservesCollisions(t *testing.T) {
	target := dataset("target", "P1", "p1", "P2")
	idx := BuildIndex(target, "", genericKey(), nil)

	refs := idx.Lookup("P1")
	require.Len(t, refs, 2)
	assert.Equal(t, Ref{Pos: 0, ID: "P1"}, refs[0])
	assert.Equal(t, Ref{Pos: 1, ID: "p1"}, refs[1])
	assert.Equal(t, 2, idx.Keys())
	assert.Equal(t, 3, idx.Rows())
}

func TestBuildIndex_SkipsUnrecognized(t *testing.T) {
	target := dataset("target", "P1", "", "A,B")
	idx := BuildIndex(target, "", genericKey(), nil)
	assert.Equal(t, 1, idx.Keys())
	assert.Equal(t, 2, idx.Rejected())
}

func TestMatch_Direct(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "P1", "P3"), "", key, nil)

	out := Match(SourcesFrom(dataset("source", "P1", "P2,P3", "P9"), ""), idx, key, Options{
		Stage:          model.StageDirect,
		MatchType:      model.MatchDirect,
		BaseConfidence: 1.0,
	})

	require.Len(t, out.Matches, 1)
	assert.Equal(t, model.NewMatch("P1", "P1", model.StageDirect, 1.0, model.MatchDirect), out.Matches[0])
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, Rejection{SourceID: "P2,P3", Reason: normalize.ReasonComposite}, out.Rejected[0])
}

func TestMatch_CompositeKeepsOriginalSourceID(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "B"), "", key, nil)

	out := Match(SourcesFrom(dataset("source", "A,B"), ""), idx, key, Options{
		Stage:           model.StageComposite,
		MatchType:       model.MatchDirect,
		BaseConfidence:  1.0,
		CompositeExpand: true,
		Composite:       DefaultCompositePolicy(),
	})

	require.Len(t, out.Matches, 1)
	m := out.Matches[0]
	assert.Equal(t, "A,B", m.SourceID)
	assert.Equal(t, "B", m.TargetID)
	assert.Equal(t, model.MatchCompositeExpansion, m.MatchType)
	assert.InDelta(t, 0.95, m.Confidence, 1e-9)
}

func TestMatch_CompositeSingleComponentIsDiscounted(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "P1", "P2", "P3"), "", key, nil)

	out := Match(SourcesFrom(dataset("source", "P1,", "P2, ", "P3,P3", "P1"), ""), idx, key, Options{
		Stage:           model.StageComposite,
		MatchType:       model.MatchDirect,
		BaseConfidence:  1.0,
		CompositeExpand: true,
		Composite:       DefaultCompositePolicy(),
	})

	require.Len(t, out.Matches, 4)
	want := map[string]string{"P1,": "P1", "P2, ": "P2", "P3,P3": "P3"}
	for _, m := range out.Matches[:3] {
		assert.Equal(t, want[m.SourceID], m.TargetID)
		assert.Equal(t, model.StageComposite, m.Stage)
		assert.Equal(t, model.MatchCompositeExpansion, m.MatchType, m.SourceID)
		assert.InDelta(t, 0.95, m.Confidence, 1e-9, m.SourceID)
	}
	plain := out.Matches[3]
	assert.Equal(t, "P1", plain.SourceID)
	assert.Equal(t, model.MatchDirect, plain.MatchType, "no delimiter, no discount")
	assert.InDelta(t, 1.0, plain.Confidence, 1e-9)
}

func TestMatch_CompositeAveragePolicy(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "B", "C"), "", key, nil)

	out := Match(SourcesFrom(dataset("source", "A;B|C;D"), ""), idx, key, Options{
		Stage:           model.StageComposite,
		BaseConfidence:  1.0,
		CompositeExpand: true,
		Composite:       CompositePolicy{Mode: CompositeAverage, Discount: 1},
	})

	require.Len(t, out.Matches, 2)
	for _, m := range out.Matches {
		assert.Equal(t, "A;B|C;D", m.SourceID)
		assert.InDelta(t, 0.5, m.Confidence, 1e-9)
	}
}

func TestMatch_OneToManyAndFirstOnly(t *testing.T) {
	key := genericKey()
	target := model.NewDataset("target", "acc")
	target.Append(model.Record{"acc": "T2", "gene": "TP53"})
	target.Append(model.Record{"acc": "T1", "gene": "TP53"})
	target.Append(model.Record{"acc": "T3", "gene": "MDM2"})
	idx := BuildIndex(target, "gene", key, nil)

	sources := []Source{{ID: "S1", Value: "tp53"}}
	out := Match(sources, idx, key, Options{Stage: model.StageBridge, BaseConfidence: 1})
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "T1", out.Matches[0].TargetID)
	assert.Equal(t, "T2", out.Matches[1].TargetID)

	out = Match(sources, idx, key, Options{Stage: model.StageBridge, BaseConfidence: 1, FirstOnly: true})
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "T1", out.Matches[0].TargetID)
}

func TestMatch_DuplicateTargetIDsDeduplicated(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "P1", "P1"), "", key, nil)
	out := Match([]Source{{ID: "P1", Value: "P1"}}, idx, key, Options{BaseConfidence: 1})
	assert.Len(t, out.Matches, 1)
}

func TestMatch_EmptyComposite(t *testing.T) {
	key := genericKey()
	idx := BuildIndex(dataset("target", "P1"), "", key, nil)
	out := Match([]Source{{ID: ",;", Value: ",;"}}, idx, key, Options{CompositeExpand: true})
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, normalize.ReasonEmpty, out.Rejected[0].Reason)
}

func TestMatch_LinearOperationCount(t *testing.T) {
	key := genericKey()
	const c = 3 // one insert per target, at most two lookups per composite source

	for _, size := range []int{10, 100, 1000, 10000} {
		var ops OpCounter
		targetIDs := make([]string, size)
		sourceIDs := make([]string, size*2)
		for i := range targetIDs {
			targetIDs[i] = fmt.Sprintf("T%d", i)
		}
		for i := range sourceIDs {
			sourceIDs[i] = fmt.Sprintf("T%d,X%d", i, i)
		}

		idx := BuildIndex(dataset("target", targetIDs...), "", key, &ops)
		out := Match(SourcesFrom(dataset("source", sourceIDs...), ""), idx, key, Options{
			CompositeExpand: true,
			BaseConfidence:  1,
			Composite:       DefaultCompositePolicy(),
		})

		n, m := len(sourceIDs), len(targetIDs)
		assert.LessOrEqual(t, ops.Total(), c*(n+m), "size %d", size)
		assert.Len(t, out.Matches, size)
	}
}

func TestSplitComposite(t *testing.T) {
	assert.Equal(t, []string{"P1", "P2"}, SplitComposite(" P1 , P2 ", ""))
	assert.Equal(t, []string{"P1", "P2", "P3"}, SplitComposite("P1;P2|P3", ""))
	assert.Equal(t, []string{"P1"}, SplitComposite("P1", ""))
	assert.Equal(t, []string{"P1,P2"}, SplitComposite("P1,P2", "/"))
	assert.Empty(t, SplitComposite(" , ", ""))
}

func TestParseCompositeMode(t *testing.T) {
	m, err := ParseCompositeMode("")
	require.NoError(t, err)
	assert.Equal(t, CompositeFlat, m)

	m, err = ParseCompositeMode("average")
	require.NoError(t, err)
	assert.Equal(t, CompositeAverage, m)

	_, err = ParseCompositeMode("max")
	assert.Error(t, err)
}

func TestCompositePolicy_Confidence(t *testing.T) {
	assert.InDelta(t, 0.95, DefaultCompositePolicy().Confidence(1, 1, 2), 1e-9)
	assert.InDelta(t, 0.9*0.95, DefaultCompositePolicy().Confidence(0.9, 2, 2), 1e-9)
	assert.InDelta(t, 1.0, CompositePolicy{}.Confidence(1, 1, 3), 1e-9)
	assert.Equal(t, 0.0, CompositePolicy{Mode: CompositeAverage}.Confidence(1, 0, 0))
}
