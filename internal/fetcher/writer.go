package fetcher

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// MatchHeader is the column layout written by WriteMatchesCSV.
var MatchHeader = []string{"source_id", "target_id", "stage", "confidence", "match_type"}

// WriteMatchesCSV writes matches as CSV with a header row.
func WriteMatchesCSV(w io.Writer, matches []model.MatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MatchHeader); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, m := range matches {
		row := []string{
			m.SourceID,
			m.TargetID,
			string(m.Stage),
			strconv.FormatFloat(m.Confidence, 'f', -1, 64),
			string(m.MatchType),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write match")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteDatasetCSV writes ds with its columns in order, identifier column first.
func WriteDatasetCSV(w io.Writer, ds *model.Dataset) error {
	cols := []string{ds.IDField}
	for _, c := range ds.Columns {
		if c != ds.IDField {
			cols = append(cols, c)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	row := make([]string, len(cols))
	for _, rec := range ds.Records {
		for i, c := range cols {
			row[i] = rec[c]
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write record")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteFile creates path and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "close file")
}
