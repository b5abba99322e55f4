package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/biomap-cli/internal/model"
)

// ReadXLSX reads one worksheet as a dataset. opts.Sheet picks it by name;
// otherwise the first sheet with any rows is used, which skips the empty
// cover sheets some supplementary tables ship with.
func ReadXLSX(path string, opts LoadOptions) (*model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := pickSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return FromRows(opts, rows)
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	for _, sheet := range f.Sheets {
		if len(sheet.Rows) > 0 {
			return sheet, nil
		}
	}
	return nil, eris.New("xlsx: workbook has no rows")
}
