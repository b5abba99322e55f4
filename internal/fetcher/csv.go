package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// ctxCheckEvery bounds how many rows are read between cancellation checks.
const ctxCheckEvery = 4096

// ReadDelimited reads a CSV or TSV export whose first non-comment row is the
// header. Lines starting with '#' are skipped, as are blank rows; fields are
// trimmed and quotes are parsed leniently since database dumps rarely quote
// consistently.
func ReadDelimited(ctx context.Context, r io.Reader, opts LoadOptions) (*model.Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows [][]string
	for i := 0; ; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "csv: read cancelled")
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for j := range rec {
			rec[j] = strings.TrimSpace(rec[j])
		}
		rows = append(rows, rec)
	}
	return FromRows(opts, rows)
}
