package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// EntityType tags an identifier with the namespace it belongs to.
type EntityType string

const (
	EntityProtein    EntityType = "protein"         // UniProt accessions
	EntityHMDB       EntityType = "metabolite_hmdb" // HMDB metabolite ids
	EntityChEBI      EntityType = "chebi"
	EntityKEGG       EntityType = "kegg_compound"
	EntityPubChem    EntityType = "pubchem_cid"
	EntityInChIKey   EntityType = "inchikey"
	EntityGeneSymbol EntityType = "gene_symbol"
	EntityGeneric    EntityType = "generic"
)

var entityTypes = map[EntityType]struct{}{
	EntityProtein:    {},
	EntityHMDB:       {},
	EntityChEBI:      {},
	EntityKEGG:       {},
	EntityPubChem:    {},
	EntityInChIKey:   {},
	EntityGeneSymbol: {},
	EntityGeneric:    {},
}

// ParseEntityType converts a configured name into an EntityType.
// The empty string maps to EntityGeneric.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return EntityGeneric, nil
	}
	t := EntityType(s)
	if _, ok := entityTypes[t]; !ok {
		return "", eris.Errorf("unknown entity type: %q (valid: %v)", s, EntityTypes())
	}
	return t, nil
}

// EntityTypes returns all known entity type names, sorted.
func EntityTypes() []string {
	out := make([]string, 0, len(entityTypes))
	for t := range entityTypes {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// Identifier is a raw identifier value tagged with its entity type. The
// normalized form is derived on demand and never stored here.
type Identifier struct {
	Raw  string     `json:"raw"`
	Type EntityType `json:"type"`
}
