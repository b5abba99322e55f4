package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// Resolution is a historical identifier mapped to its current canonical form.
type Resolution struct {
	CanonicalID string  `json:"canonical_id"`
	Score       float64 `json:"score"`
}

// Resolver maps obsolete, secondary or merged identifiers to the current
// canonical identifier. A nil Resolution with a nil error means the
// identifier is unknown. An error means the resolver itself is unavailable.
// Timeouts, retries and caching are the implementation's concern.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*Resolution, error)
}

// StaticResolver resolves identifiers from an in-memory mapping table.
type StaticResolver struct {
	mapping map[string]Resolution
}

// NewStaticResolver creates a StaticResolver from old→new pairs, all scored score.
func NewStaticResolver(pairs map[string]string, score float64) *StaticResolver {
	r := &StaticResolver{mapping: make(map[string]Resolution, len(pairs))}
	for from, to := range pairs {
		r.mapping[strings.ToUpper(strings.TrimSpace(from))] = Resolution{CanonicalID: to, Score: score}
	}
	return r
}

// NewStaticResolverFromDataset builds a StaticResolver from two columns of ds.
// An optional score column overrides the default score per row.
func NewStaticResolverFromDataset(ds *model.Dataset, fromField, toField, scoreField string, score float64) (*StaticResolver, error) {
	if ds == nil {
		return nil, eris.New("resolve: nil mapping dataset")
	}
	r := &StaticResolver{mapping: make(map[string]Resolution, ds.Len())}
	for i, rec := range ds.Records {
		from, to := strings.TrimSpace(rec[fromField]), strings.TrimSpace(rec[toField])
		if from == "" || to == "" {
			continue
		}
		s := score
		if scoreField != "" && rec[scoreField] != "" {
			v, err := parseScore(rec[scoreField])
			if err != nil {
				return nil, eris.Wrapf(err, "resolve: mapping row %d", i)
			}
			s = v
		}
		r.mapping[strings.ToUpper(from)] = Resolution{CanonicalID: to, Score: s}
	}
	return r, nil
}

// Resolve looks id up in the mapping table. It never fails.
func (r *StaticResolver) Resolve(_ context.Context, id string) (*Resolution, error) {
	res, ok := r.mapping[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// Len returns the number of mapped identifiers.
func (r *StaticResolver) Len() int { return len(r.mapping) }
