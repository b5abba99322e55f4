package actions

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

// mergeDatasets concatenates datasets that share an identifier field.
type mergeDatasets struct{}

func (a *mergeDatasets) Description() string {
	return "concatenate datasets with the same identifier field"
}

func (a *mergeDatasets) Params() pipeline.Schema {
	return pipeline.Schema{
		{Name: "inputs", Kind: pipeline.KindStrings, Required: true, Description: "datasets to concatenate, in order"},
		{Name: "output", Kind: pipeline.KindString, Required: true, Description: "dataset to write"},
		{Name: "dedupe", Kind: pipeline.KindBool, Default: false, Description: "keep only the first row per identifier"},
	}
}

func (a *mergeDatasets) Validate(p pipeline.Params) error {
	if len(p.Strings("inputs")) == 0 {
		return eris.New("merge_datasets: no inputs")
	}
	return nil
}

func (a *mergeDatasets) Run(_ context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	inputs := p.Strings("inputs")

	var out *model.Dataset
	seen := make(map[string]struct{})
	for _, name := range inputs {
		ds, err := ec.Dataset(name)
		if err != nil {
			return model.ActionResult{}, err
		}
		if out == nil {
			out = model.NewDataset(p.String("output"), ds.IDField, ds.Columns...)
		} else if ds.IDField != out.IDField {
			return model.ActionResult{}, eris.Errorf("merge_datasets: %s uses id field %q, expected %q", name, ds.IDField, out.IDField)
		}
		for i, rec := range ds.Records {
			if p.Bool("dedupe") {
				id := ds.ID(i)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			out.Append(rec.Clone())
		}
	}
	ec.SetDataset(out.Name, out)

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("merged %d datasets into %s (%d rows)", len(inputs), out.Name, out.Len()),
	}, nil
}
