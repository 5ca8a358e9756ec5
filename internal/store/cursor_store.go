package store

import (
	"path/filepath"
	"sync"
	"time"

	"heartx/internal/domain"
)

const cursorsFilename = "cursors.json"

// CursorFileStore remembers the last successful poll per feed.
type CursorFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewCursorFileStore returns a CursorFileStore rooted at dir.
func NewCursorFileStore(dir string) *CursorFileStore {
	return &CursorFileStore{dir: dir}
}

// SaveCursor stores at for name.
func (s *CursorFileStore) SaveCursor(name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, cursorsFilename)
	all := map[string]time.Time{}
	if err := readJSON(path, &all); err != nil {
		return err
	}
	if all == nil {
		all = map[string]time.Time{}
	}
	all[name] = at.UTC()
	return writeJSON(path, all)
}

// LoadCursor returns the stored cursor, or the zero time.
func (s *CursorFileStore) LoadCursor(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := map[string]time.Time{}
	if err := readJSON(filepath.Join(s.dir, cursorsFilename), &all); err != nil {
		return time.Time{}, err
	}
	return all[name], nil
}

// Compile-time assertion that CursorFileStore implements domain.CursorStore.
var _ domain.CursorStore = (*CursorFileStore)(nil)
