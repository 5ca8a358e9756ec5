package store

import (
	"path/filepath"
	"sync"

	"heartx/internal/domain"
)

const lateFilename = "late.json"

// LateFileStore persists late-arrival markers keyed by inbox item ID.
type LateFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewLateFileStore returns a LateFileStore rooted at dir.
func NewLateFileStore(dir string) *LateFileStore {
	return &LateFileStore{dir: dir}
}

// SaveLateItems replaces the stored items.
func (s *LateFileStore) SaveLateItems(items map[string]domain.LateItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.dir, lateFilename), items)
}

// LoadLateItems returns the stored items; never nil.
func (s *LateFileStore) LoadLateItems() (map[string]domain.LateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := map[string]domain.LateItem{}
	if err := readJSON(filepath.Join(s.dir, lateFilename), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = map[string]domain.LateItem{}
	}
	return items, nil
}

// Compile-time assertion that LateFileStore implements domain.LateStore.
var _ domain.LateStore = (*LateFileStore)(nil)
