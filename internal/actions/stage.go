package actions

import (
	"context"
	"fmt"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
	"github.com/sells-group/biomap-cli/internal/resolve"
)

// stageAction runs one resolution stage. Matches accumulate in match set
// <output>; rows still unmatched are written to dataset <output>_unmatched
// so the next stage action can read them.
type stageAction struct {
	deps  Deps
	stage model.StageName
}

func newStageAction(deps Deps, stage model.StageName) *stageAction {
	return &stageAction{deps: deps, stage: stage}
}

func (a *stageAction) Description() string {
	return fmt.Sprintf("run the %s resolution stage", a.stage)
}

func (a *stageAction) Params() pipeline.Schema {
	return withSchema(matchingParams,
		pipeline.Param{Name: "source", Kind: pipeline.KindString, Required: true, Description: "source dataset"},
		pipeline.Param{Name: "target", Kind: pipeline.KindString, Required: true, Description: "target dataset"},
		pipeline.Param{Name: "output", Kind: pipeline.KindString, Default: "matches", Description: "match set to append to"},
	)
}

func (a *stageAction) Validate(p pipeline.Params) error {
	_, err := matchingConfig(a.deps.Matching, p)
	return err
}

func (a *stageAction) Run(ctx context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	source, target, err := pair(ec, p)
	if err != nil {
		return model.ActionResult{}, err
	}
	cfg, err := matchingConfig(a.deps.Matching, p)
	if err != nil {
		return model.ActionResult{}, err
	}
	cfg.Stages = []model.StageName{a.stage}
	pl, err := resolve.New(cfg, a.deps.normalizer(), a.deps.Resolver)
	if err != nil {
		return model.ActionResult{}, err
	}

	ws := resolve.NewWorkingSet(source)
	rep := pl.RunStage(ctx, a.stage, ws, target)

	output := p.String("output")
	if rep.Status == model.StatusOK {
		ec.AppendMatches(output, rep.Matches...)
		ws = ws.Without(model.MatchedSourceIDs(rep.Matches))
	} else {
		ec.AppendMatches(output)
	}
	ec.SetDataset(UnmatchedName(output), ws.Dataset(UnmatchedName(output)))
	ec.Record(rep.Events(stepLabel(p, a.stage))...)
	ec.MergeStats(rep.Stats(output + "."))

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s %s: matched %d of %d", a.stage, rep.Status, rep.Matched, rep.Processed),
		Payload: rep,
	}, nil
}

func stepLabel(p pipeline.Params, stage model.StageName) string {
	return fmt.Sprintf("%s:%s", p.String("output"), stage)
}

// progressiveResolve runs every configured stage in one step.
type progressiveResolve struct {
	deps Deps
}

func (a *progressiveResolve) Description() string {
	return "run all resolution stages and partition the source into matched and unmatched"
}

func (a *progressiveResolve) Params() pipeline.Schema {
	return withSchema(matchingParams,
		pipeline.Param{Name: "source", Kind: pipeline.KindString, Required: true, Description: "source dataset"},
		pipeline.Param{Name: "target", Kind: pipeline.KindString, Required: true, Description: "target dataset"},
		pipeline.Param{Name: "output", Kind: pipeline.KindString, Default: "matches", Description: "match set to write"},
		pipeline.Param{Name: "stages", Kind: pipeline.KindStrings, Description: "stage order (default: all)"},
		pipeline.Param{Name: "min_confidence", Kind: pipeline.KindFloat, Description: "drop final matches below this confidence"},
	)
}

func (a *progressiveResolve) Validate(p pipeline.Params) error {
	_, err := matchingConfig(a.deps.Matching, p)
	return err
}

func (a *progressiveResolve) Run(ctx context.Context, p pipeline.Params, ec *pipeline.Context) (model.ActionResult, error) {
	source, target, err := pair(ec, p)
	if err != nil {
		return model.ActionResult{}, err
	}
	cfg, err := matchingConfig(a.deps.Matching, p)
	if err != nil {
		return model.ActionResult{}, err
	}
	pl, err := resolve.New(cfg, a.deps.normalizer(), a.deps.Resolver)
	if err != nil {
		return model.ActionResult{}, err
	}

	res, err := pl.Run(ctx, source, target)
	if err != nil {
		return model.ActionResult{}, err
	}

	output := p.String("output")
	for _, rep := range res.Stages {
		ec.Record(rep.Events(stepLabel(p, rep.Stage))...)
		ec.MergeStats(rep.Stats(output + "."))
	}
	if len(res.Filtered) > 0 {
		ec.Record(resolve.FilterEvent(output, cfg.MinConfidence, res.Filtered))
	}

	ec.SetMatches(output, res.Matched)
	ec.SetMatches(output+"_filtered", res.Filtered)
	ec.SetDataset(UnmatchedName(output), unmatchedRows(source, res.Matched, UnmatchedName(output)))
	ec.SetStat(output+".matched", float64(len(model.MatchedSourceIDs(res.Matched))))
	ec.SetStat(output+".unmatched", float64(len(res.Unmatched)))
	ec.SetStat(output+".filtered", float64(len(res.Filtered)))

	return model.ActionResult{
		Success: true,
		Message: fmt.Sprintf("matched %d, unmatched %d, filtered %d",
			len(model.MatchedSourceIDs(res.Matched)), len(res.Unmatched), len(res.Filtered)),
		Payload: res,
	}, nil
}

func unmatchedRows(source *model.Dataset, kept []model.MatchRecord, name string) *model.Dataset {
	matched := model.MatchedSourceIDs(kept)
	var pos []int
	for i := range source.Records {
		if _, ok := matched[source.ID(i)]; !ok {
			pos = append(pos, i)
		}
	}
	return source.Subset(name, pos)
}
