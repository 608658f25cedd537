package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/masahif/focuscrawl/internal/crawler"
)

// DocumentStore writes fetched pages into an output directory
type DocumentStore struct {
	dir string
}

// NewDocumentStore creates dir if it does not exist
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DocumentStore{dir: dir}, nil
}

// Dir returns the output directory
func (d *DocumentStore) Dir() string {
	return d.dir
}

// Save writes body to name inside the output directory, replacing any
// previous file of that name, and returns the written path.
func (d *DocumentStore) Save(name string, body []byte) (string, error) {
	path := filepath.Join(d.dir, filepath.Base(name))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

var _ crawler.DocumentStore = (*DocumentStore)(nil)
