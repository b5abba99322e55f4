package fetcher

import (
	"archive/zip"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// extractDataset unpacks the single dataset file inside a ZIP archive into
// destDir. Directories, dot files and __MACOSX resource forks are ignored;
// anything else must be one supported dataset file. Only the base name is
// kept, so entry paths cannot escape destDir.
func extractDataset(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var picked *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || ignoredEntry(f.Name) {
			continue
		}
		if !supportedExt(f.Name) || strings.EqualFold(path.Ext(f.Name), ".zip") {
			return "", eris.Errorf("zip: unsupported entry %q", f.Name)
		}
		if picked != nil {
			return "", eris.Errorf("zip: expected one dataset file, found %q and %q", picked.Name, f.Name)
		}
		picked = f
	}
	if picked == nil {
		return "", eris.New("zip: archive holds no dataset file")
	}

	rc, err := picked.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	dst := filepath.Join(destDir, path.Base(picked.Name))
	if _, err := copyToFile(dst, rc); err != nil {
		return "", err
	}
	return dst, nil
}

func ignoredEntry(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, ".")
}
