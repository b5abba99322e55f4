// Package fetcher loads identifier datasets from local files and from HTTP
// or FTP sources, and writes results back out.
package fetcher

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// Fetcher copies a remote object to a local file and returns the bytes written.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dst string) (int64, error)
}

// copyToFile writes r to a fresh file at dst. A partial file is removed.
func copyToFile(dst string, r io.Reader) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}
