package normalize

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/model"
)

func TestNormalize_Protein(t *testing.T) {
	n := New(DefaultOptions())
	tests := []struct {
		raw  string
		want string
	}{
		{"P12345", "P12345"},
		{"  p12345 ", "P12345"},
		{"UniProtKB:P12345", "P12345"},
		{"uniprot:Q9Y6K9", "Q9Y6K9"},
		{"UniProtKB:UniProt:P12345", "P12345"},
		{"P12345-2", "P12345"},
		{"A0A024R161", "A0A024R161"},
		{"NP_000537.3", "NP_000537"},
		{"ENSP00000269305", "ENSP00000269305"},
		{"ＰＯ１２３４", ""}, // NFKC folds to PO1234, which is not an accession
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := n.Normalize(tt.raw, model.EntityProtein)
			if tt.want == "" {
				assert.True(t, IsNotRecognized(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_ProteinKeepIsoform(t *testing.T) {
	n := New(Options{StripIsoform: false})
	got, err := n.Normalize("UniProtKB:P12345-2", model.EntityProtein)
	require.NoError(t, err)
	assert.Equal(t, "P12345-2", got)

	got, err = n.Normalize("NP_000537.3", model.EntityProtein)
	require.NoError(t, err)
	assert.Equal(t, "NP_000537.3", got)
}

func TestNormalize_HMDBPadding(t *testing.T) {
	n := New(DefaultOptions())
	for _, raw := range []string{"HMDB0000001", "HMDB00001", "hmdb1", "HMDB:HMDB0000001", "HMDB:00001", "1"} {
		got, err := n.Normalize(raw, model.EntityHMDB)
		require.NoError(t, err, raw)
		assert.Equal(t, "HMDB0000001", got, raw)
	}

	_, err := n.Normalize("HMDB12345678", model.EntityHMDB)
	assert.Equal(t, ReasonTooLong, ReasonOf(err))

	_, err = n.Normalize("HMDBX", model.EntityHMDB)
	assert.Equal(t, ReasonPattern, ReasonOf(err))
}

func TestNormalize_Chemistry(t *testing.T) {
	n := New(DefaultOptions())
	tests := []struct {
		raw  string
		et   model.EntityType
		want string
	}{
		{"CHEBI:15377", model.EntityChEBI, "CHEBI:15377"},
		{"chebi:015377", model.EntityChEBI, "CHEBI:15377"},
		{"15377", model.EntityChEBI, "CHEBI:15377"},
		{"cpd:C00031", model.EntityKEGG, "C00031"},
		{"KEGG:C00031", model.EntityKEGG, "C00031"},
		{"CID:5793", model.EntityPubChem, "5793"},
		{"PUBCHEM.COMPOUND:005793", model.EntityPubChem, "5793"},
		{"InChIKey=WQZGKKKJIJFFOK-GASJEMHNSA-N", model.EntityInChIKey, "WQZGKKKJIJFFOK-GASJEMHNSA-N"},
		{"hgnc.symbol:tp53", model.EntityGeneSymbol, "TP53"},
		{"HLA-A", model.EntityGeneSymbol, "HLA-A"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.et, tt.raw), func(t *testing.T) {
			got, err := n.Normalize(tt.raw, tt.et)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_NotRecognized(t *testing.T) {
	n := New(DefaultOptions())

	_, err := n.Normalize("   ", model.EntityGeneric)
	assert.Equal(t, ReasonEmpty, ReasonOf(err))

	_, err = n.Normalize("P1,P2", model.EntityGeneric)
	assert.Equal(t, ReasonComposite, ReasonOf(err))

	_, err = n.Normalize("C0003", model.EntityKEGG)
	assert.True(t, IsNotRecognized(err))

	_, err = n.Normalize("x", model.EntityType("unknown"))
	assert.True(t, IsNotRecognized(err))

	assert.Equal(t, "", ReasonOf(assert.AnError))
	assert.Contains(t, (&NotRecognizedError{Raw: "x", Type: model.EntityKEGG, Reason: ReasonPattern}).Error(), "kegg_compound")
}

func TestNormalize_Generic(t *testing.T) {
	n := New(DefaultOptions())
	got, err := n.Normalize("  p1  ", model.EntityGeneric)
	require.NoError(t, err)
	assert.Equal(t, "P1", got)

	got, err = n.Normalize("alpha   beta", "")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA BETA", got)
}

// TestNormalize_Idempotent generates random prefix/suffix/padding
// combinations and checks normalize(normalize(x)) == normalize(x).
func TestNormalize_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	accessions := []string{"P12345", "Q9Y6K9", "O00533", "A0A024R161", "NP_000537", "ENSP00000269305"}
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	gens := map[model.EntityType]func() string{
		model.EntityProtein: func() string {
			s := accessions[rng.IntN(len(accessions))]
			switch rng.IntN(3) {
			case 1:
				s += fmt.Sprintf("-%d", rng.IntN(9)+1)
			case 2:
				s += fmt.Sprintf(".%d", rng.IntN(9)+1)
			}
			return pick(rng, []string{"", "UniProtKB:", "uniprot:", "UP:"}) + s
		},
		model.EntityHMDB: func() string {
			digits := fmt.Sprintf("%0*d", rng.IntN(7)+1, rng.IntN(99999))
			return pick(rng, []string{"", "HMDB", "hmdb", "HMDB:HMDB", "HMDB:"}) + digits
		},
		model.EntityChEBI: func() string {
			return pick(rng, []string{"", "CHEBI:", "chebi:"}) + fmt.Sprintf("%0*d", rng.IntN(4)+1, rng.IntN(999999))
		},
		model.EntityKEGG: func() string {
			return pick(rng, []string{"", "cpd:", "KEGG:"}) + fmt.Sprintf("C%05d", rng.IntN(99999))
		},
		model.EntityPubChem: func() string {
			return pick(rng, []string{"", "CID:", "PUBCHEM.COMPOUND:"}) + fmt.Sprintf("%d", rng.IntN(1_000_000))
		},
		model.EntityInChIKey: func() string {
			return pick(rng, []string{"", "InChIKey="}) + randLetters(rng, letters, 14) + "-" + randLetters(rng, letters, 10) + "-N"
		},
		model.EntityGeneSymbol: func() string {
			return pick(rng, []string{"", "hgnc.symbol:"}) + randLetters(rng, letters, rng.IntN(5)+2) + fmt.Sprintf("%d", rng.IntN(20))
		},
		model.EntityGeneric: func() string {
			return pick(rng, []string{"", " ", "  "}) + randLetters(rng, letters+"abc 12", rng.IntN(8)+1) + pick(rng, []string{"", " "})
		},
	}

	for _, strip := range []bool{true, false} {
		n := New(Options{StripIsoform: strip, HMDBWidth: 7})
		for et, gen := range gens {
			for i := 0; i < 200; i++ {
				raw := gen()
				once, err := n.Normalize(raw, et)
				if err != nil {
					assert.True(t, IsNotRecognized(err), "%s %q: %v", et, raw, err)
					continue
				}
				twice, err := n.Normalize(once, et)
				require.NoError(t, err, "%s %q -> %q", et, raw, once)
				assert.Equal(t, once, twice, "%s %q", et, raw)
			}
		}
	}
}

// TestNormalize_TotalOverDeclaredPatterns checks that every generated value
// from the declared pattern set is recognized.
func TestNormalize_TotalOverDeclaredPatterns(t *testing.T) {
	n := New(DefaultOptions())
	valid := map[model.EntityType][]string{
		model.EntityProtein:    {"P12345", "UniProtKB:P12345-3", "NP_000537.3"},
		model.EntityHMDB:       {"HMDB0000122", "HMDB00122", "hmdb:122"},
		model.EntityChEBI:      {"CHEBI:17234", "17234"},
		model.EntityKEGG:       {"C00031"},
		model.EntityPubChem:    {"5793", "CID5793"},
		model.EntityInChIKey:   {"WQZGKKKJIJFFOK-GASJEMHNSA-N"},
		model.EntityGeneSymbol: {"TP53", "BRCA1"},
		model.EntityGeneric:    {"anything"},
	}
	for et, raws := range valid {
		for _, raw := range raws {
			_, err := n.Normalize(raw, et)
			assert.NoError(t, err, "%s %q", et, raw)
		}
	}
}

func pick(rng *rand.Rand, opts []string) string {
	return opts[rng.IntN(len(opts))]
}

func randLetters(rng *rand.Rand, alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(b)
}
