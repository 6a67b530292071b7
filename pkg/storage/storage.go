package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
	"github.com/amosWeiskopf/levelcrawl/pkg/utils"
)

// ManifestName is the file the crawl report is written to under the root
const ManifestName = "manifest.json"

// FileStore writes fetched pages to <root>/<depth>/<name>.html
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at root. The directory is created
// lazily on the first write.
func NewFileStore(root string) *FileStore {
	if root == "" {
		root = "."
	}
	return &FileStore{root: root}
}

// Root returns the directory pages are written under
func (s *FileStore) Root() string {
	return s.root
}

// FileName maps a page URL to its on-disk name
func FileName(pageURL string) string {
	return utils.SanitizeFilename(pageURL) + ".html"
}

// Save writes body for a page fetched at depth and returns the file path.
// Distinct URLs that sanitize to the same name overwrite each other.
func (s *FileStore) Save(depth int, pageURL string, body []byte) (string, error) {
	dir := filepath.Join(s.root, strconv.Itoa(depth))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create depth directory: %w", err)
	}

	path := filepath.Join(dir, FileName(pageURL))
	if err := writeFile(path, body); err != nil {
		return "", err
	}
	return path, nil
}

// WriteManifest stores report as indented JSON next to the depth directories
func (s *FileStore) WriteManifest(report *models.CrawlReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create storage root: %w", err)
	}

	path := filepath.Join(s.root, ManifestName)
	if err := writeFile(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes through a temp file in the same directory and renames it
// into place, so readers never see a partial page.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
