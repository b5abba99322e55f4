// Package resolve runs progressive, multi-stage identifier resolution.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/match"
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
)

// StageReport is the outcome of one stage.
type StageReport struct {
	Stage     model.StageName     `json:"stage"`
	Status    string              `json:"status"`
	Processed int                 `json:"processed"`
	Matched   int                 `json:"matched"`
	Matches   []model.MatchRecord `json:"matches,omitempty"`
	Rejected  []match.Rejection   `json:"-"`
	Ops       int                 `json:"ops"`
	Err       error               `json:"-"`
	Duration  time.Duration       `json:"duration"`
}

// Result is the final partition produced by Run.
type Result struct {
	Matched   []model.MatchRecord `json:"matched"`
	Filtered  []model.MatchRecord `json:"filtered,omitempty"`
	Unmatched []model.Identifier  `json:"unmatched"`
	Stages    []StageReport       `json:"stages"`
	Remaining *WorkingSet         `json:"-"`
}

// Pipeline runs resolution stages over a shrinking working set.
type Pipeline struct {
	cfg      Config
	norm     *normalize.Normalizer
	resolver Resolver
}

// New creates a Pipeline. resolver may be nil, in which case the
// historical stage is skipped.
func New(cfg Config, norm *normalize.Normalizer, resolver Resolver) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if norm == nil {
		norm = normalize.New(normalize.DefaultOptions())
	}
	return &Pipeline{cfg: cfg, norm: norm, resolver: resolver}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run executes every configured stage in order. A failed stage is recorded
// and the next stage runs on the same working set.
func (p *Pipeline) Run(ctx context.Context, source, target *model.Dataset) (*Result, error) {
	if err := source.Validate(); err != nil {
		return nil, eris.Wrap(err, "resolve: source")
	}
	if err := target.Validate(); err != nil {
		return nil, eris.Wrap(err, "resolve: target")
	}

	ws := NewWorkingSet(source)
	res := &Result{}
	var all []model.MatchRecord

	for _, stage := range p.cfg.Stages {
		rep := p.RunStage(ctx, stage, ws, target)
		res.Stages = append(res.Stages, rep)
		if rep.Status != model.StatusOK {
			continue
		}
		all = append(all, rep.Matches...)
		ws = ws.Without(model.MatchedSourceIDs(rep.Matches))
	}

	res.Matched, res.Filtered = model.FilterByConfidence(all, p.cfg.MinConfidence)
	res.Remaining = ws
	res.Unmatched = unmatchedAfterFilter(source, res.Matched, p.cfg.EntityType)
	return res, nil
}

// RunStage runs a single stage against ws. The index over target is built
// fresh for this call and discarded afterwards.
func (p *Pipeline) RunStage(ctx context.Context, stage model.StageName, ws *WorkingSet, target *model.Dataset) StageReport {
	log := zap.L().With(zap.String("component", "resolve"), zap.String("stage", string(stage)))
	start := time.Now()
	rep := StageReport{Stage: stage, Processed: ws.Len(), Status: model.StatusOK}

	var ops match.OpCounter
	var err error
	switch stage {
	case model.StageDirect:
		rep.Matches, rep.Rejected = p.indexed(ws, target, false, &ops)
	case model.StageComposite:
		rep.Matches, rep.Rejected = p.indexed(ws, target, true, &ops)
	case model.StageHistorical:
		if p.resolver == nil {
			rep.Status = model.StatusSkipped
			break
		}
		rep.Matches, rep.Rejected, err = p.historical(ctx, ws, target, &ops)
	case model.StageBridge:
		if p.cfg.BridgeSourceField == "" || p.cfg.BridgeTargetField == "" {
			rep.Status = model.StatusSkipped
			break
		}
		rep.Matches, rep.Rejected = p.bridge(ws, target, &ops)
	default:
		err = eris.Errorf("unknown stage %q", stage)
	}

	if err != nil {
		rep.Status = model.StatusFailed
		rep.Err = &StageError{Stage: stage, Err: err}
		rep.Matches = nil
		log.Warn("stage failed, continuing with unmatched set",
			zap.Int("processed", rep.Processed),
			zap.Error(err),
		)
	}

	rep.Matched = len(model.MatchedSourceIDs(rep.Matches))
	rep.Ops = ops.Total()
	rep.Duration = time.Since(start)

	log.Info(fmt.Sprintf("stage %s complete", stage),
		zap.String("status", rep.Status),
		zap.Int("processed", rep.Processed),
		zap.Int("matched", rep.Matched),
		zap.Int("rejected", len(rep.Rejected)),
	)
	return rep
}

func (p *Pipeline) key() match.KeyFunc {
	return match.KeyFor(p.norm, p.cfg.EntityType)
}

func (p *Pipeline) indexed(ws *WorkingSet, target *model.Dataset, composite bool, ops *match.OpCounter) ([]model.MatchRecord, []match.Rejection) {
	key := p.key()
	idx := match.BuildIndex(target, p.cfg.TargetField, key, ops)

	opts := match.Options{
		Stage:          model.StageDirect,
		MatchType:      model.MatchDirect,
		BaseConfidence: p.cfg.DirectConfidence,
		FirstOnly:      p.cfg.FirstOnly,
	}
	if composite {
		opts.Stage = model.StageComposite
		opts.CompositeExpand = true
		opts.Delimiters = p.cfg.Delimiters
		opts.Composite = p.cfg.Composite
	}
	out := match.Match(ws.Sources(p.cfg.SourceField), idx, key, opts)
	return out.Matches, out.Rejected
}

func (p *Pipeline) historical(ctx context.Context, ws *WorkingSet, target *model.Dataset, ops *match.OpCounter) ([]model.MatchRecord, []match.Rejection, error) {
	key := p.key()
	idx := match.BuildIndex(target, p.cfg.TargetField, key, ops)

	var (
		matches  []model.MatchRecord
		rejected []match.Rejection
	)
	for _, src := range ws.Sources(p.cfg.SourceField) {
		k, err := key(src.Value)
		if err != nil {
			rejected = append(rejected, match.Rejection{SourceID: src.ID, Reason: normalize.ReasonOf(err)})
			continue
		}
		res, err := p.resolver.Resolve(ctx, k)
		if err != nil {
			return nil, rejected, eris.Wrapf(err, "resolve %q", k)
		}
		if res == nil || res.CanonicalID == "" {
			continue
		}
		canonical, err := key(res.CanonicalID)
		if err != nil || canonical == k {
			continue
		}
		conf := res.Score
		if conf > p.cfg.HistoricalCap {
			conf = p.cfg.HistoricalCap
		}
		matches = append(matches, p.collect(src.ID, idx.Lookup(canonical), conf, model.StageHistorical, model.MatchHistorical)...)
	}
	return matches, rejected, nil
}

func (p *Pipeline) bridge(ws *WorkingSet, target *model.Dataset, ops *match.OpCounter) ([]model.MatchRecord, []match.Rejection) {
	key := match.KeyFor(p.norm, p.cfg.BridgeEntityType)
	si := match.BuildSimilarityIndex(target, p.cfg.BridgeTargetField, key, p.cfg.PostingLimit, ops)

	var (
		matches  []model.MatchRecord
		rejected []match.Rejection
	)
	for _, src := range ws.Sources(p.cfg.BridgeSourceField) {
		k, err := key(src.Value)
		if err != nil {
			rejected = append(rejected, match.Rejection{SourceID: src.ID, Reason: normalize.ReasonOf(err)})
			continue
		}
		best := si.Best(k, p.cfg.BridgeThreshold)
		if len(best) == 0 {
			continue
		}
		// Ties share one score, so their refs are pooled before collecting.
		var refs []match.Ref
		for _, cand := range best {
			refs = append(refs, cand.Refs...)
		}
		matches = append(matches, p.collect(src.ID, refs, best[0].Score, model.StageBridge, model.MatchBridge)...)
	}
	return matches, rejected
}

// collect turns index refs into match records, one per distinct target id,
// honoring FirstOnly.
func (p *Pipeline) collect(sourceID string, refs []match.Ref, conf float64, stage model.StageName, mt model.MatchType) []model.MatchRecord {
	if len(refs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	if p.cfg.FirstOnly {
		ids = ids[:1]
	}
	out := make([]model.MatchRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.NewMatch(sourceID, id, stage, conf, mt))
	}
	return out
}

func unmatchedAfterFilter(source *model.Dataset, kept []model.MatchRecord, t model.EntityType) []model.Identifier {
	matched := model.MatchedSourceIDs(kept)
	out := make([]model.Identifier, 0)
	for i := range source.Records {
		id := source.ID(i)
		if _, ok := matched[id]; !ok {
			out = append(out, model.Identifier{Raw: id, Type: t})
		}
	}
	return out
}
