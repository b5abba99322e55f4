package match

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultDelimiters separate components of a composite identifier.
const DefaultDelimiters = ",;|"

// SplitComposite splits value on any of delims, trimming components and
// dropping empty ones. A value with no delimiter yields one component.
func SplitComposite(value, delims string) []string {
	if delims == "" {
		delims = DefaultDelimiters
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CompositeMode selects how a composite match's confidence is derived.
type CompositeMode string

const (
	// CompositeFlat applies the discount to the base confidence.
	CompositeFlat CompositeMode = "flat"
	// CompositeAverage averages per-component confidences (base for a hit,
	// zero for a miss) and then applies the discount.
	CompositeAverage CompositeMode = "average"
)

// ParseCompositeMode validates a configured mode. Empty means flat.
func ParseCompositeMode(s string) (CompositeMode, error) {
	switch CompositeMode(s) {
	case "", CompositeFlat:
		return CompositeFlat, nil
	case CompositeAverage:
		return CompositeAverage, nil
	default:
		return "", eris.Errorf("match: unknown composite mode %q (valid: flat, average)", s)
	}
}

// CompositePolicy discounts confidence for matches found through composite expansion.
type CompositePolicy struct {
	Mode     CompositeMode
	Discount float64
}

// DefaultCompositePolicy is the flat 0.95 discount.
func DefaultCompositePolicy() CompositePolicy {
	return CompositePolicy{Mode: CompositeFlat, Discount: 0.95}
}

// Confidence returns the composite confidence for a source whose
// components produced hits matches out of total.
func (p CompositePolicy) Confidence(base float64, hits, total int) float64 {
	discount := p.Discount
	if discount <= 0 || discount > 1 {
		discount = 1
	}
	switch p.Mode {
	case CompositeAverage:
		if total == 0 {
			return 0
		}
		return base * discount * float64(hits) / float64(total)
	default:
		return base * discount
	}
}
