// Package normalize canonicalizes biological identifiers per entity type.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/biomap-cli/internal/model"
)

// Reason codes attached to NotRecognizedError.
const (
	ReasonEmpty     = "empty"
	ReasonComposite = "composite"
	ReasonPattern   = "not_recognized"
	ReasonTooLong   = "too_long"
)

// NotRecognizedError reports that a raw value matches no known pattern for
// its entity type. It is an outcome, not a failure of the normalizer.
type NotRecognizedError struct {
	Raw    string
	Type   model.EntityType
	Reason string
}

func (e *NotRecognizedError) Error() string {
	return fmt.Sprintf("normalize: %q not recognized as %s (%s)", e.Raw, e.Type, e.Reason)
}

// IsNotRecognized reports whether err is (or wraps) a NotRecognizedError.
func IsNotRecognized(err error) bool {
	var nr *NotRecognizedError
	return errors.As(err, &nr)
}

// ReasonOf returns the reason code of a NotRecognizedError, or "" for other errors.
func ReasonOf(err error) string {
	var nr *NotRecognizedError
	if errors.As(err, &nr) {
		return nr.Reason
	}
	return ""
}

// Options controls optional normalization behavior.
type Options struct {
	// StripIsoform drops isoform ("-2") and version (".3") suffixes from
	// protein accessions.
	StripIsoform bool
	// HMDBWidth is the zero-padded width of the HMDB numeric body.
	HMDBWidth int
}

// DefaultOptions strips isoforms and pads HMDB ids to the current 7-digit form.
func DefaultOptions() Options {
	return Options{StripIsoform: true, HMDBWidth: 7}
}

// Normalizer canonicalizes identifiers. It holds no mutable state and is
// safe to share.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	if opts.HMDBWidth <= 0 {
		opts.HMDBWidth = 7
	}
	return &Normalizer{opts: opts}
}

// Options returns the normalizer's configuration.
func (n *Normalizer) Options() Options {
	return n.opts
}

var (
	compositeDelims = ",;|"
	multiSpaceRe    = regexp.MustCompile(`\s+`)

	uniprotRe   = regexp.MustCompile(`^([OPQ][0-9][A-Z0-9]{3}[0-9]|[A-NR-Z][0-9]([A-Z][A-Z0-9]{2}[0-9]){1,2})$`)
	refseqRe    = regexp.MustCompile(`^[NXY]P_[0-9]+$`)
	ensemblPRe  = regexp.MustCompile(`^ENSP[0-9]{11}$`)
	isoformRe   = regexp.MustCompile(`^(.+?)(-[0-9]+)$`)
	versionRe   = regexp.MustCompile(`^(.+?)(\.[0-9]+)$`)
	hmdbRe      = regexp.MustCompile(`^(?:HMDB)?([0-9]+)$`)
	digitsRe    = regexp.MustCompile(`^[0-9]+$`)
	keggRe      = regexp.MustCompile(`^C[0-9]{5}$`)
	inchikeyRe  = regexp.MustCompile(`^[A-Z]{14}-[A-Z]{10}-[A-Z]$`)
	geneSymRe   = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.@_/\-]*$`)
	genericBody = regexp.MustCompile(`^\S(.*\S)?$`)
)

// namespacePrefixes lists, per entity type, the prefixes stripped before
// pattern validation. Longer prefixes come first.
var namespacePrefixes = map[model.EntityType][]string{
	model.EntityProtein:    {"UNIPROTKB/SWISS-PROT:", "UNIPROTKB/TREMBL:", "UNIPROTKB:", "UNIPROT:", "UP:"},
	model.EntityHMDB:       {"HMDB:"},
	model.EntityChEBI:      {"CHEBI:"},
	model.EntityKEGG:       {"KEGG.COMPOUND:", "KEGG:", "CPD:"},
	model.EntityPubChem:    {"PUBCHEM.COMPOUND:", "PUBCHEM:", "CID:", "CID"},
	model.EntityInChIKey:   {"INCHIKEY=", "INCHIKEY:"},
	model.EntityGeneSymbol: {"HGNC.SYMBOL:", "SYMBOL:"},
}

// Normalize returns the canonical form of raw for entity type t, or a
// *NotRecognizedError. Normalize is idempotent on every value it accepts.
func (n *Normalizer) Normalize(raw string, t model.EntityType) (string, error) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return "", notRecognized(raw, t, ReasonEmpty)
	}
	if strings.ContainsAny(s, compositeDelims) {
		return "", notRecognized(raw, t, ReasonComposite)
	}
	s = norm.NFKC.String(strings.ToUpper(s))
	s = stripPrefixes(s, namespacePrefixes[t])

	switch t {
	case model.EntityProtein:
		return n.protein(raw, s)
	case model.EntityHMDB:
		return n.hmdb(raw, s)
	case model.EntityChEBI:
		return chebi(raw, s)
	case model.EntityKEGG:
		return match(raw, s, t, keggRe)
	case model.EntityPubChem:
		return pubchem(raw, s)
	case model.EntityInChIKey:
		return match(raw, s, t, inchikeyRe)
	case model.EntityGeneSymbol:
		return match(raw, s, t, geneSymRe)
	case model.EntityGeneric, "":
		s = multiSpaceRe.ReplaceAllString(s, " ")
		return match(raw, s, model.EntityGeneric, genericBody)
	default:
		return "", notRecognized(raw, t, ReasonPattern)
	}
}

func (n *Normalizer) protein(raw, s string) (string, error) {
	base, suffix := s, ""
	if m := isoformRe.FindStringSubmatch(s); m != nil && isProteinAccession(m[1]) {
		base, suffix = m[1], m[2]
	} else if m := versionRe.FindStringSubmatch(s); m != nil && isProteinAccession(m[1]) {
		base, suffix = m[1], m[2]
	}
	if !isProteinAccession(base) {
		return "", notRecognized(raw, model.EntityProtein, ReasonPattern)
	}
	if n.opts.StripIsoform {
		return base, nil
	}
	return base + suffix, nil
}

func isProteinAccession(s string) bool {
	return uniprotRe.MatchString(s) || refseqRe.MatchString(s) || ensemblPRe.MatchString(s)
}

func (n *Normalizer) hmdb(raw, s string) (string, error) {
	m := hmdbRe.FindStringSubmatch(s)
	if m == nil {
		return "", notRecognized(raw, model.EntityHMDB, ReasonPattern)
	}
	body := strings.TrimLeft(m[1], "0")
	if len(body) > n.opts.HMDBWidth {
		return "", notRecognized(raw, model.EntityHMDB, ReasonTooLong)
	}
	return "HMDB" + strings.Repeat("0", n.opts.HMDBWidth-len(body)) + body, nil
}

func chebi(raw, s string) (string, error) {
	if !digitsRe.MatchString(s) {
		return "", notRecognized(raw, model.EntityChEBI, ReasonPattern)
	}
	return "CHEBI:" + trimZeros(s), nil
}

func pubchem(raw, s string) (string, error) {
	if !digitsRe.MatchString(s) {
		return "", notRecognized(raw, model.EntityPubChem, ReasonPattern)
	}
	return trimZeros(s), nil
}

func match(raw, s string, t model.EntityType, re *regexp.Regexp) (string, error) {
	if !re.MatchString(s) {
		return "", notRecognized(raw, t, ReasonPattern)
	}
	return s, nil
}

// stripPrefixes removes namespace prefixes until none apply, so stacked
// prefixes ("UniProtKB:UniProt:P12345") collapse too.
func stripPrefixes(s string, prefixes []string) string {
	for {
		stripped := false
		for _, p := range prefixes {
			if strings.HasPrefix(s, p) && len(s) > len(p) {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func notRecognized(raw string, t model.EntityType, reason string) error {
	return &NotRecognizedError{Raw: raw, Type: t, Reason: reason}
}
