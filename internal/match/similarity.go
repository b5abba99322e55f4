package match

import (
	"sort"

	"github.com/sells-group/biomap-cli/internal/model"
)

// SimilarityIndex is a trigram inverted index over one field of a dataset.
// Candidate retrieval reads at most a fixed number of postings per trigram,
// so a query costs O(len(key) × postingLimit) regardless of dataset size.
type SimilarityIndex struct {
	keys     []simEntry
	byKey    map[string]int
	postings map[string][]int
	limit    int
	ops      *OpCounter
}

type simEntry struct {
	key   string
	grams map[string]struct{}
	refs  []Ref
}

// Scored is a candidate returned by a similarity query.
type Scored struct {
	Key   string
	Refs  []Ref
	Score float64
}

// BuildSimilarityIndex indexes field of ds. postingLimit bounds how many
// entries are read from each trigram posting list at query time.
func BuildSimilarityIndex(ds *model.Dataset, field string, key KeyFunc, postingLimit int, ops *OpCounter) *SimilarityIndex {
	if postingLimit <= 0 {
		postingLimit = 50
	}
	si := &SimilarityIndex{
		byKey:    make(map[string]int),
		postings: make(map[string][]int),
		limit:    postingLimit,
		ops:      ops,
	}
	for i, rec := range ds.Records {
		k, err := key(rec[field])
		if err != nil {
			continue
		}
		ref := Ref{Pos: i, ID: rec[ds.IDField]}
		if at, ok := si.byKey[k]; ok {
			si.keys[at].refs = append(si.keys[at].refs, ref)
			ops.insert()
			continue
		}
		at := len(si.keys)
		grams := Trigrams(k)
		si.keys = append(si.keys, simEntry{key: k, grams: grams, refs: []Ref{ref}})
		si.byKey[k] = at
		for g := range grams {
			si.postings[g] = append(si.postings[g], at)
			ops.insert()
		}
	}
	return si
}

// Best returns the highest-scoring keys at or above threshold; ties are all
// returned, sorted by key. An exact key hit scores 1.0.
func (si *SimilarityIndex) Best(key string, threshold float64) []Scored {
	si.ops.lookup()
	if at, ok := si.byKey[key]; ok {
		e := si.keys[at]
		return []Scored{{Key: e.key, Refs: e.refs, Score: 1}}
	}

	grams := Trigrams(key)
	candidates := make(map[int]struct{})
	for _, g := range sortedGrams(grams) {
		si.ops.lookup()
		posting := si.postings[g]
		if len(posting) > si.limit {
			posting = posting[:si.limit]
		}
		for _, at := range posting {
			candidates[at] = struct{}{}
		}
	}

	var best []Scored
	top := threshold
	for at := range candidates {
		e := si.keys[at]
		score := Dice(grams, e.grams)
		if score < threshold || score < top {
			continue
		}
		if score > top {
			top = score
			best = best[:0]
		}
		best = append(best, Scored{Key: e.key, Refs: e.refs, Score: score})
	}
	sort.Slice(best, func(i, j int) bool { return best[i].Key < best[j].Key })
	return best
}

// Trigrams returns the set of padded character trigrams of s.
func Trigrams(s string) map[string]struct{} {
	r := []rune("  " + s + " ")
	out := make(map[string]struct{}, len(r))
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = struct{}{}
	}
	return out
}

// Dice returns the Sørensen–Dice coefficient of two trigram sets.
func Dice(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

// Similarity scores two strings with trigram Dice.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return Dice(Trigrams(a), Trigrams(b))
}

func sortedGrams(g map[string]struct{}) []string {
	out := make([]string, 0, len(g))
	for k := range g {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
