package actions

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
	"github.com/sells-group/biomap-cli/internal/resolve"
)

// filterConfidence copies a match set, dropping matches below min_confidence.
// The input set is left intact and the dropped matches go to provenance.
type filterConfidence struct{}

func (a *filterConfidence) Description() string {
	return "keep matches at or above a confidence threshold"
}

func (a *filterConfidence) Params() pipeline.Schema {
	return pipeline.Schema{
		{Name: "input", Kind: pipeline.KindString, Required: true, Description: "match set to filter"},
		{Name: "output", Kind: pipeline.KindString, Required: true, Description: "match set to write"},
		{Name: "min_confidence", Kind: pipeline.KindFloat, Required: true, Description: "threshold in [0,1]"},
	}
}

func (a *filterConfidence) Validate(p pipeline.Params) error {
	if threshold := p.Float("min_confidence"); threshold < 0 || threshold > 1 {
		return eris.Errorf("filter_confidence: min_confidence must be within [0,1], got %v", threshold)
	}
	return nil
}

func (a *filterConfidence) Run(_ context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	threshold := p.Float("min_confidence")
	matches, err := ec.Matches(p.String("input"))
	if err != nil {
		return model.ActionResult{}, err
	}

	kept, dropped := model.FilterByConfidence(matches, threshold)
	output := p.String("output")
	ec.SetMatches(output, kept)
	ec.Record(resolve.FilterEvent(output, threshold, dropped))
	ec.SetStat(output+".kept", float64(len(kept)))
	ec.SetStat(output+".dropped", float64(len(dropped)))

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("kept %d, dropped %d", len(kept), len(dropped)),
	}, nil
}
