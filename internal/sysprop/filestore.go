// Package sysprop provides the process-wide property store and the daemon
// restart control used by the root access toggle.
package sysprop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/plexsphere/rootd/internal/fsutil"
)

// ErrInvalidKey is returned for property keys that cannot name a file.
var ErrInvalidKey = errors.New("sysprop: invalid property key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// FileStore keeps each property as a file named after its key. Other
// processes read a property by reading the file.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// SetProperty atomically replaces the value of key.
func (s *FileStore) SetProperty(_ context.Context, key, value string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(s.dir, key), []byte(value), 0644, 0755); err != nil {
		return fmt.Errorf("sysprop: set %s: %w", key, err)
	}
	return nil
}

// GetProperty returns the value of key, or "" if it was never set.
func (s *FileStore) GetProperty(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sysprop: get %s: %w", key, err)
	}
	return string(data), nil
}
