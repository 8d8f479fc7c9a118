package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// PublicPathPrefix is the route prefix stored files are served under.
const PublicPathPrefix = "/files"

// FileStore persists delivered file content to local disk under
// collision-resistant names and knows the public URL of each file.
type FileStore struct {
	dir     string
	baseURL string
	counter atomic.Uint64
}

// NewFileStore creates the uploads directory if needed. baseURL is the
// externally reachable base URL of this service.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the local directory files are written to.
func (s *FileStore) Dir() string { return s.dir }

// StoredName derives a collision-resistant name from the arrival time, a
// monotonic counter and the sanitized original name.
func (s *FileStore) StoredName(originalName string) string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%d_%d_%s", time.Now().UnixMilli(), n, sanitizeName(originalName))
}

// Save streams r to disk under storedName and returns the local path and size.
func (s *FileStore) Save(storedName string, r io.Reader) (string, int64, error) {
	location := filepath.Join(s.dir, storedName)
	f, err := os.Create(location)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", location, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(location)
		return "", 0, fmt.Errorf("write %s: %w", location, err)
	}
	return location, size, nil
}

// PublicURL returns the externally reachable URL for a stored file.
func (s *FileStore) PublicURL(storedName string) string {
	return s.baseURL + PublicPathPrefix + "/" + storedName
}

// sanitizeName strips path components and replaces anything outside a
// conservative character set so stored names are safe on disk and in URLs.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
