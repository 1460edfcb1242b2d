package rootaccess

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plexsphere/rootd/internal/fsutil"
)

// ErrMalformedState is returned by Load when the persisted value is not a
// decimal integer.
var ErrMalformedState = errors.New("rootaccess: malformed persisted state")

// Persister stores the toggle value across process restarts.
type Persister interface {
	// Load returns the persisted value. On any error the returned value
	// is false.
	Load() (bool, error)

	// Save replaces the persisted value.
	Save(enabled bool) error
}

// FilePersister keeps the toggle as the ASCII text "0" or "1" in a single
// file, rewritten in full on every change.
type FilePersister struct {
	path string
}

// NewFilePersister returns a FilePersister for dir/enabled.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{path: filepath.Join(dir, StateFileName)}
}

// Path returns the location of the state file.
func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load() (bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return false, fmt.Errorf("rootaccess: load %s: %w", p.path, err)
	}
	return decodeState(data)
}

func (p *FilePersister) Save(enabled bool) error {
	if err := fsutil.WriteFileAtomic(p.path, encodeState(enabled), 0600, 0700); err != nil {
		return fmt.Errorf("rootaccess: save: %w", err)
	}
	return nil
}

// decodeState parses a persisted value. Surrounding whitespace is ignored;
// zero is false and any other integer is true.
func decodeState(data []byte) (bool, error) {
	text := strings.TrimSpace(string(data))
	n, err := strconv.Atoi(text)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrMalformedState, text)
	}
	return n != 0, nil
}

func encodeState(enabled bool) []byte {
	if enabled {
		return []byte("1")
	}
	return []byte("0")
}
