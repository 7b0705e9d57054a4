package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// StorageKey names the saved file, matching the browser storage key of the
// web client so exported data stays recognizable.
const StorageKey = "family-calendar-events-v1"

// FilePersister keeps the store in a single JSON file.
type FilePersister struct {
	Path string

	mu sync.Mutex
}

// NewFilePersister stores data as <dir>/family-calendar-events-v1.json.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{Path: filepath.Join(dir, StorageKey+".json")}
}

// Load reads the file. A missing file yields an error wrapping
// fs.ErrNotExist.
func (p *FilePersister) Load() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return os.ReadFile(p.Path)
}

// Save writes data atomically:
//   - parent directory is created (0700) if needed
//   - bytes go to a temp file in the same directory, fsynced
//   - the temp file is chmod 0600 and renamed over Path
func (p *FilePersister) Save(data []byte) error {
	if p.Path == "" {
		return errors.New("store: file path is empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcal-events-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, p.Path)
}
