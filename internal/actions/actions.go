// Package actions holds the built-in strategy actions.
package actions

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/match"
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
	"github.com/sells-group/biomap-cli/internal/pipeline"
	"github.com/sells-group/biomap-cli/internal/resolve"
)

// Deps are the collaborators shared by the built-in actions.
type Deps struct {
	Normalizer *normalize.Normalizer
	// Resolver backs the historical stage. Nil skips that stage.
	Resolver resolve.Resolver
	// Matching holds the configured defaults that step params override.
	Matching resolve.Config
}

func (d Deps) normalizer() *normalize.Normalizer {
	if d.Normalizer == nil {
		return normalize.New(normalize.DefaultOptions())
	}
	return d.Normalizer
}

// RegisterAll registers every built-in action on reg.
func RegisterAll(reg *pipeline.Registry, deps Deps) error {
	if len(deps.Matching.Stages) == 0 {
		deps.Matching = resolve.DefaultConfig()
	}
	builtins := []struct {
		name    string
		factory pipeline.Factory
	}{
		{"normalize_identifiers", func() pipeline.Action { return &normalizeIdentifiers{deps: deps} }},
		{"match_direct", func() pipeline.Action { return newStageAction(deps, model.StageDirect) }},
		{"match_composite", func() pipeline.Action { return newStageAction(deps, model.StageComposite) }},
		{"match_historical", func() pipeline.Action { return newStageAction(deps, model.StageHistorical) }},
		{"match_bridge", func() pipeline.Action { return newStageAction(deps, model.StageBridge) }},
		{"progressive_resolve", func() pipeline.Action { return &progressiveResolve{deps: deps} }},
		{"filter_confidence", func() pipeline.Action { return &filterConfidence{} }},
		{"merge_datasets", func() pipeline.Action { return &mergeDatasets{} }},
		{"calculate_overlap", func() pipeline.Action { return &calculateOverlap{deps: deps} }},
		{"fail", func() pipeline.Action { return &fail{} }},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in action.
func NewRegistry(deps Deps) (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	if err := RegisterAll(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}

// matchingParams are the per-step overrides of the matching configuration.
var matchingParams = pipeline.Schema{
	{Name: "entity_type", Kind: pipeline.KindString, Description: "entity type of the identifiers"},
	{Name: "source_field", Kind: pipeline.KindString, Description: "source column to match on (default: id field)"},
	{Name: "target_field", Kind: pipeline.KindString, Description: "target column to match on (default: id field)"},
	{Name: "bridge_source_field", Kind: pipeline.KindString, Description: "secondary source column for the bridge stage"},
	{Name: "bridge_target_field", Kind: pipeline.KindString, Description: "secondary target column for the bridge stage"},
	{Name: "bridge_entity_type", Kind: pipeline.KindString, Description: "entity type of the bridge columns"},
	{Name: "bridge_threshold", Kind: pipeline.KindFloat, Description: "minimum bridge similarity"},
	{Name: "composite_mode", Kind: pipeline.KindString, Description: "flat or average"},
	{Name: "composite_discount", Kind: pipeline.KindFloat, Description: "composite confidence discount"},
	{Name: "delimiters", Kind: pipeline.KindString, Description: "composite delimiters"},
	{Name: "first_only", Kind: pipeline.KindBool, Description: "keep only the smallest target per source"},
}

// matchingConfig applies step overrides to base.
func matchingConfig(base resolve.Config, p pipeline.Params) (resolve.Config, error) {
	cfg := base
	cfg.Stages = append([]model.StageName(nil), base.Stages...)

	var err error
	if p.Has("entity_type") {
		if cfg.EntityType, err = model.ParseEntityType(p.String("entity_type")); err != nil {
			return cfg, err
		}
	}
	if p.Has("bridge_entity_type") {
		if cfg.BridgeEntityType, err = model.ParseEntityType(p.String("bridge_entity_type")); err != nil {
			return cfg, err
		}
	}
	if p.Has("composite_mode") {
		if cfg.Composite.Mode, err = match.ParseCompositeMode(p.String("composite_mode")); err != nil {
			return cfg, err
		}
	}
	setString(p, "source_field", &cfg.SourceField)
	setString(p, "target_field", &cfg.TargetField)
	setString(p, "bridge_source_field", &cfg.BridgeSourceField)
	setString(p, "bridge_target_field", &cfg.BridgeTargetField)
	setString(p, "delimiters", &cfg.Delimiters)
	if p.Has("bridge_threshold") {
		cfg.BridgeThreshold = p.Float("bridge_threshold")
	}
	if p.Has("composite_discount") {
		cfg.Composite.Discount = p.Float("composite_discount")
	}
	if p.Has("first_only") {
		cfg.FirstOnly = p.Bool("first_only")
	}
	if p.Has("min_confidence") {
		cfg.MinConfidence = p.Float("min_confidence")
	}
	if p.Has("stages") {
		if cfg.Stages, err = resolve.ParseStages(p.Strings("stages")); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func setString(p pipeline.Params, name string, dst *string) {
	if p.Has(name) {
		*dst = p.String(name)
	}
}

func withSchema(base pipeline.Schema, extra ...pipeline.Param) pipeline.Schema {
	out := make(pipeline.Schema, 0, len(base)+len(extra))
	out = append(out, extra...)
	return append(out, base...)
}

func pair(ec *pipeline.Context, p pipeline.Params) (*model.Dataset, *model.Dataset, error) {
	source, err := ec.Dataset(p.String("source"))
	if err != nil {
		return nil, nil, eris.Wrap(err, "source")
	}
	target, err := ec.Dataset(p.String("target"))
	if err != nil {
		return nil, nil, eris.Wrap(err, "target")
	}
	return source, target, nil
}

// UnmatchedName is the dataset that receives the rows a stage action left
// unmatched in match set output.
func UnmatchedName(output string) string {
	return output + "_unmatched"
}
