package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biomap-cli/internal/model"
)

// LoadOptions configures dataset loading.
type LoadOptions struct {
	Name      string // dataset name, defaults to the file stem
	IDField   string // identifier column, defaults to the first header column
	Delimiter rune   // overrides the delimiter implied by the extension
	Sheet     string // XLSX sheet name, default first sheet
}

// Loader reads datasets from paths or URLs. Remote sources are downloaded
// into a scratch directory first.
type Loader struct {
	HTTP    Fetcher
	FTP     Fetcher
	TempDir string
}

// NewLoader creates a Loader with the default HTTP and FTP fetchers.
func NewLoader() *Loader {
	return &Loader{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

// Load reads the dataset at src, which is a local path or an http(s):// or
// ftp:// URL. The format is picked by extension: .csv, .tsv/.tab/.txt,
// .xlsx, .json, or .zip holding exactly one of those.
func (l *Loader) Load(ctx context.Context, src string, opts LoadOptions) (*model.Dataset, error) {
	if opts.Name == "" {
		opts.Name = stem(src)
	}
	local, cleanup, err := l.localize(ctx, src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ds, err := LoadFile(ctx, local, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", src)
	}
	zap.L().Info("fetcher: dataset loaded",
		zap.String("source", src),
		zap.String("name", ds.Name),
		zap.String("id_field", ds.IDField),
		zap.Int("rows", ds.Len()),
	)
	return ds, nil
}

func (l *Loader) localize(ctx context.Context, src string) (string, func(), error) {
	noop := func() {}
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // single letter: windows drive
		return src, noop, nil
	}

	var f Fetcher
	switch u.Scheme {
	case "http", "https":
		f = l.HTTP
	case "ftp":
		f = l.FTP
	case "file":
		return u.Path, noop, nil
	default:
		return "", noop, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return "", noop, eris.Errorf("fetcher: no fetcher for %s", u.Scheme)
	}

	dir, err := os.MkdirTemp(l.TempDir, "biomap-*")
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create temp dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	dst := filepath.Join(dir, downloadName(u))
	n, err := f.Fetch(ctx, src, dst)
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "fetcher: download %s", src)
	}
	zap.L().Debug("fetcher: downloaded", zap.String("url", src), zap.Int64("bytes", n))
	return dst, cleanup, nil
}

// downloadName names the local copy of u. Export endpoints such as
// /uniprotkb/stream carry the file type in a format query parameter
// instead of the path.
func downloadName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "download"
	}
	if supportedExt(name) {
		return name
	}
	if format := strings.ToLower(u.Query().Get("format")); format != "" && supportedExt(name+"."+format) {
		return name + "." + format
	}
	return name
}

// LoadFile reads a local dataset file.
func LoadFile(ctx context.Context, p string, opts LoadOptions) (*model.Dataset, error) {
	if opts.Name == "" {
		opts.Name = stem(p)
	}

	ext := strings.ToLower(filepath.Ext(p))
	switch ext {
	case ".csv", ".tsv", ".tab", ".txt":
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open")
		}
		defer f.Close() //nolint:errcheck
		if opts.Delimiter == 0 && ext != ".csv" {
			opts.Delimiter = '\t'
		}
		return ReadDelimited(ctx, f, opts)
	case ".xlsx":
		return ReadXLSX(p, opts)
	case ".json":
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open")
		}
		defer f.Close() //nolint:errcheck
		return ReadJSON(ctx, f, opts)
	case ".zip":
		dir, err := os.MkdirTemp("", "biomap-zip-*")
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck
		inner, err := extractDataset(p, dir)
		if err != nil {
			return nil, err
		}
		return LoadFile(ctx, inner, opts)
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", ext)
	}
}

func supportedExt(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".tsv", ".tab", ".txt", ".xlsx", ".json", ".zip":
		return true
	}
	return false
}

// FromRows builds a dataset from a header row followed by data rows. Short
// rows are padded with empty values; blank rows are skipped. A row with
// non-empty cells past the header is an error.
func FromRows(opts LoadOptions, rows [][]string) (*model.Dataset, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, eris.New("fetcher: missing header row")
	}
	header := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			return nil, eris.Errorf("fetcher: duplicate column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	idField := opts.IDField
	if idField == "" {
		idField = header[0]
	}
	if !seen[idField] {
		return nil, eris.Errorf("fetcher: id field %q not in header %v", idField, header)
	}

	ds := model.NewDataset(opts.Name, idField, header...)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if len(row) > len(header) && !blank(row[len(header):]) {
			return nil, eris.Errorf("fetcher: data row %d has %d cells, header has %d", n+1, len(row), len(header))
		}
		rec := make(model.Record, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func stem(p string) string {
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(filepath.ToSlash(p))
	for ext := path.Ext(base); ext != ""; ext = path.Ext(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
