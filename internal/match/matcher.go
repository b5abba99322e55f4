package match

import (
	"sort"
	"strings"

	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/normalize"
)

// Source is one source row offered to the matcher.
type Source struct {
	ID    string // original identifier, reported as MatchRecord.SourceID
	Value string // value to key; usually equal to ID
}

// SourcesFrom returns the sources of ds, keyed on field (IDField when empty).
func SourcesFrom(ds *model.Dataset, field string) []Source {
	if field == "" {
		field = ds.IDField
	}
	out := make([]Source, 0, ds.Len())
	for _, rec := range ds.Records {
		out = append(out, Source{ID: rec[ds.IDField], Value: rec[field]})
	}
	return out
}

// Options parameterizes a single Match pass.
type Options struct {
	Stage           model.StageName
	MatchType       model.MatchType
	BaseConfidence  float64
	CompositeExpand bool
	Delimiters      string
	FirstOnly       bool
	Composite       CompositePolicy
}

// Rejection records a source value that could not be keyed.
type Rejection struct {
	SourceID string
	Reason   string
}

// Outcome is the result of one Match pass.
type Outcome struct {
	Matches  []model.MatchRecord
	Rejected []Rejection
}

// Match joins sources against idx in one pass. Each source costs one index
// lookup per component; the indexed collection is never scanned.
// With CompositeExpand, any source value containing a delimiter is scored
// by the composite policy, even when it splits into a single component.
func Match(sources []Source, idx *Index, key KeyFunc, opts Options) Outcome {
	delims := opts.Delimiters
	if delims == "" {
		delims = DefaultDelimiters
	}
	var out Outcome
	for _, src := range sources {
		components := []string{src.Value}
		composite := false
		if opts.CompositeExpand {
			components = SplitComposite(src.Value, delims)
			composite = strings.ContainsAny(src.Value, delims)
		}
		if len(components) == 0 {
			out.Rejected = append(out.Rejected, Rejection{SourceID: src.ID, Reason: normalize.ReasonEmpty})
			continue
		}

		var (
			targets   []string
			seen      = make(map[string]struct{})
			hits      int
			lastErr   error
			keyedOnce bool
		)
		for _, c := range components {
			k, err := key(c)
			if err != nil {
				lastErr = err
				continue
			}
			keyedOnce = true
			refs := idx.Lookup(k)
			if len(refs) > 0 {
				hits++
			}
			for _, r := range refs {
				if _, dup := seen[r.ID]; dup {
					continue
				}
				seen[r.ID] = struct{}{}
				targets = append(targets, r.ID)
			}
		}
		if !keyedOnce {
			out.Rejected = append(out.Rejected, Rejection{SourceID: src.ID, Reason: reasonOf(lastErr)})
			continue
		}
		if len(targets) == 0 {
			continue
		}

		conf, mt := opts.BaseConfidence, opts.MatchType
		if composite {
			conf = opts.Composite.Confidence(opts.BaseConfidence, hits, len(components))
			mt = model.MatchCompositeExpansion
		}

		sort.Strings(targets)
		if opts.FirstOnly {
			targets = targets[:1]
		}
		for _, t := range targets {
			out.Matches = append(out.Matches, model.NewMatch(src.ID, t, opts.Stage, conf, mt))
		}
	}
	return out
}

func reasonOf(err error) string {
	if r := normalize.ReasonOf(err); r != "" {
		return r
	}
	return normalize.ReasonPattern
}
