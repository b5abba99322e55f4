package actions

import (
	"context"
	"fmt"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

// Overlap summarizes how two identifier collections intersect after
// normalization.
type Overlap struct {
	SourceUnique   int     `json:"source_unique"`
	TargetUnique   int     `json:"target_unique"`
	Shared         int     `json:"shared"`
	Jaccard        float64 `json:"jaccard"`
	SourceCoverage float64 `json:"source_coverage"`
	TargetCoverage float64 `json:"target_coverage"`
}

// ComputeOverlap normalizes both columns and intersects them. Values the
// normalizer rejects are left out of every count.
func ComputeOverlap(n *normalize.Normalizer, t model.EntityType, source, target *model.Dataset, sourceField, targetField string) Overlap {
	src := keySet(n, t, source, sourceField)
	tgt := keySet(n, t, target, targetField)

	shared := 0
	for k := range src {
		if _, ok := tgt[k]; ok {
			shared++
		}
	}
	o := Overlap{SourceUnique: len(src), TargetUnique: len(tgt), Shared: shared}
	if union := len(src) + len(tgt) - shared; union > 0 {
		o.Jaccard = float64(shared) / float64(union)
	}
	if len(src) > 0 {
		o.SourceCoverage = float64(shared) / float64(len(src))
	}
	if len(tgt) > 0 {
		o.TargetCoverage = float64(shared) / float64(len(tgt))
	}
	return o
}

func keySet(n *normalize.Normalizer, t model.EntityType, ds *model.Dataset, field string) map[string]struct{} {
	if field == "" {
		field = ds.IDField
	}
	out := make(map[string]struct{}, ds.Len())
	for _, rec := range ds.Records {
		if k, err := n.Normalize(rec[field], t); err == nil {
			out[k] = struct{}{}
		}
	}
	return out
}

type calculateOverlap struct {
	deps Deps
}

func (a *calculateOverlap) Description() string {
	return "record overlap statistics between two datasets"
}

func (a *calculateOverlap) Params() pipeline.Schema {
	return pipeline.Schema{
		{Name: "source", Kind: pipeline.KindString, Required: true},
		{Name: "target", Kind: pipeline.KindString, Required: true},
		{Name: "source_field", Kind: pipeline.KindString},
		{Name: "target_field", Kind: pipeline.KindString},
		{Name: "entity_type", Kind: pipeline.KindString, Default: string(model.EntityGeneric)},
		{Name: "prefix", Kind: pipeline.KindString, Default: "overlap", Description: "statistic name prefix"},
	}
}

func (a *calculateOverlap) Validate(p pipeline.Params) error {
	_, err := model.ParseEntityType(p.String("entity_type"))
	return err
}

func (a *calculateOverlap) Run(_ context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	source, target, err := pair(ec, p)
	if err != nil {
		return model.ActionResult{}, err
	}
	t, err := model.ParseEntityType(p.String("entity_type"))
	if err != nil {
		return model.ActionResult{}, err
	}

	o := ComputeOverlap(a.deps.normalizer(), t, source, target, p.String("source_field"), p.String("target_field"))
	prefix := p.String("prefix")
	ec.MergeStats(map[string]float64{
		prefix + ".source_unique":   float64(o.SourceUnique),
		prefix + ".target_unique":   float64(o.TargetUnique),
		prefix + ".shared":          float64(o.Shared),
		prefix + ".jaccard":         o.Jaccard,
		prefix + ".source_coverage": o.SourceCoverage,
		prefix + ".target_coverage": o.TargetCoverage,
	})

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%d shared of %d source and %d target identifiers", o.Shared, o.SourceUnique, o.TargetUnique),
		Payload: o,
	}, nil
}
