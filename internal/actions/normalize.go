package actions

import (
	"context"
	"fmt"
	"sort"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

// normalizeIdentifiers adds <field>_normalized and <field>_reason columns.
// Unrecognized values get an empty normalized column and a reason code.
type normalizeIdentifiers struct {
	deps Deps
}

func (a *normalizeIdentifiers) Description() string {
	return "add a normalized identifier column to a dataset"
}

func (a *normalizeIdentifiers) Params() pipeline.Schema {
	return pipeline.Schema{
		{Name: "dataset", Kind: pipeline.KindString, Required: true, Description: "dataset to normalize"},
		{Name: "field", Kind: pipeline.KindString, Description: "column to normalize (default: id field)"},
		{Name: "entity_type", Kind: pipeline.KindString, Default: string(model.EntityGeneric), Description: "entity type of the column"},
		{Name: "output", Kind: pipeline.KindString, Description: "dataset to write (default: replace input)"},
	}
}

func (a *normalizeIdentifiers) Validate(p pipeline.Params) error {
	_, err := model.ParseEntityType(p.String("entity_type"))
	return err
}

func (a *normalizeIdentifiers) Run(_ context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	name := p.String("dataset")
	ds, err := ec.Dataset(name)
	if err != nil {
		return model.ActionResult{}, err
	}
	t, err := model.ParseEntityType(p.String("entity_type"))
	if err != nil {
		return model.ActionResult{}, err
	}
	field := p.String("field")
	if field == "" {
		field = ds.IDField
	}
	output := p.String("output")
	if output == "" {
		output = name
	}

	norm := a.deps.normalizer()
	out := model.NewDataset(output, ds.IDField, ds.Columns...)
	rejected := make(map[string]int)
	for _, rec := range ds.Records {
		row := rec.Clone()
		v, err := norm.Normalize(rec[field], t)
		if err != nil {
			reason := normalize.ReasonOf(err)
			rejected[reason]++
			row[field+"_normalized"] = ""
			row[field+"_reason"] = reason
		} else {
			row[field+"_normalized"] = v
			row[field+"_reason"] = ""
		}
		out.Append(row)
	}
	ec.SetDataset(output, out)

	total := 0
	reasons := make([]string, 0, len(rejected))
	for r, n := range rejected {
		reasons = append(reasons, r)
		total += n
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		ec.Record(model.ProvenanceEvent{
			Kind:     model.EventNormalization,
			Step:     "normalize:" + name,
			Status:   model.StatusSkipped,
			Reason:   r,
			Affected: rejected[r],
			Message:  fmt.Sprintf("%d %s values in %s.%s not normalized", rejected[r], t, name, field),
		})
	}
	ec.SetStat("normalize."+name+".recognized", float64(ds.Len()-total))
	ec.SetStat("normalize."+name+".rejected", float64(total))

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("normalized %d of %d values", ds.Len()-total, ds.Len()),
	}, nil
}
