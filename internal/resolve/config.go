package resolve

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/match"
	"github.com/sells-group/biomap-cli/internal/model"
)

// Stage confidences.
const (
	DirectConfidence     = 1.0
	CompositeConfidence  = 0.95
	HistoricalConfidence = 0.9 // upper bound on resolver scores
	BridgeThreshold      = 0.8
)

// AllStages is the default stage order.
var AllStages = []model.StageName{
	model.StageDirect,
	model.StageComposite,
	model.StageHistorical,
	model.StageBridge,
}

// Config parameterizes a Pipeline.
type Config struct {
	EntityType  model.EntityType
	SourceField string // defaults to the source dataset's IDField
	TargetField string // defaults to the target dataset's IDField

	BridgeSourceField string
	BridgeTargetField string
	BridgeEntityType  model.EntityType
	BridgeThreshold   float64
	PostingLimit      int

	Delimiters       string
	Composite        match.CompositePolicy
	DirectConfidence float64
	HistoricalCap    float64
	FirstOnly        bool
	MinConfidence    float64

	Stages []model.StageName
}

// DefaultConfig returns the standard four-stage configuration.
func DefaultConfig() Config {
	return Config{
		EntityType:       model.EntityGeneric,
		BridgeEntityType: model.EntityGeneSymbol,
		BridgeThreshold:  BridgeThreshold,
		PostingLimit:     50,
		Delimiters:       match.DefaultDelimiters,
		Composite:        match.DefaultCompositePolicy(),
		DirectConfidence: DirectConfidence,
		HistoricalCap:    HistoricalConfidence,
		Stages:           append([]model.StageName(nil), AllStages...),
	}
}

// Validate checks thresholds and stage names.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"min_confidence":     c.MinConfidence,
		"bridge_threshold":   c.BridgeThreshold,
		"direct_confidence":  c.DirectConfidence,
		"historical_cap":     c.HistoricalCap,
		"composite_discount": c.Composite.Discount,
	} {
		if v < 0 || v > 1 {
			return eris.Errorf("resolve: %s must be within [0,1], got %v", name, v)
		}
	}
	if len(c.Stages) == 0 {
		return eris.New("resolve: no stages configured")
	}
	seen := make(map[model.StageName]bool, len(c.Stages))
	for _, s := range c.Stages {
		if _, err := ParseStage(string(s)); err != nil {
			return err
		}
		if seen[s] {
			return eris.Errorf("resolve: stage %q listed twice", s)
		}
		seen[s] = true
	}
	return nil
}

// ParseStage validates a stage name.
func ParseStage(s string) (model.StageName, error) {
	for _, st := range AllStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", eris.Errorf("resolve: unknown stage %q (valid: direct, composite_expansion, historical_resolution, bridge)", s)
}

// ParseStages validates a list of stage names, preserving order.
func ParseStages(names []string) ([]model.StageName, error) {
	out := make([]model.StageName, 0, len(names))
	for _, n := range names {
		st, err := ParseStage(n)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
