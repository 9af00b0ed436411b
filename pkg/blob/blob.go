// Package blob stores report artifacts (uploaded CSVs, rendered HTML
// and PDF documents) on the local filesystem.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Store reads and writes artifact blobs by opaque reference.
type Store interface {
	// Save writes data for a report and returns the artifact reference.
	// Kind is the artifact role and file extension, e.g. "csv", "html", "pdf".
	Save(reportID, kind string, data []byte) (string, error)
	// Open returns a reader for a previously saved artifact.
	Open(ref string) (io.ReadCloser, error)
}

// FSStore implements Store on a local directory.
type FSStore struct {
	dir string
}

// NewFS creates a filesystem store rooted at dir, creating it if needed.
func NewFS(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create dir %s", dir)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Save(reportID, kind string, data []byte) (string, error) {
	if reportID == "" || kind == "" {
		return "", eris.New("blob: report id and kind are required")
	}
	if strings.ContainsAny(reportID+kind, `/\`) {
		return "", eris.Errorf("blob: invalid ref component %q/%q", reportID, kind)
	}

	name := fmt.Sprintf("%s.%s", reportID, kind)
	path := filepath.Join(s.dir, name)

	// Write through a temp file so readers never see a partial artifact.
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", eris.Wrap(err, "blob: create temp")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", eris.Wrapf(err, "blob: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrapf(err, "blob: close %s", name)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrapf(err, "blob: rename %s", name)
	}
	return name, nil
}

func (s *FSStore) Open(ref string) (io.ReadCloser, error) {
	if ref == "" {
		return nil, eris.New("blob: empty ref")
	}
	// Refs are bare file names; reject anything that escapes the root.
	if filepath.Base(ref) != ref {
		return nil, eris.Errorf("blob: invalid ref %q", ref)
	}
	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		return nil, eris.Wrapf(err, "blob: open %s", ref)
	}
	return f, nil
}
