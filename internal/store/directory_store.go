package store

import (
	"path/filepath"
	"sync"
	"time"

	"heartx/internal/domain"
)

const directoryFilename = "directory.json"

type directorySnapshot struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Keys      domain.Directory `json:"keys"`
}

// DirectoryFileStore persists the last bulk directory fetch.
type DirectoryFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirectoryFileStore returns a DirectoryFileStore rooted at dir.
func NewDirectoryFileStore(dir string) *DirectoryFileStore {
	return &DirectoryFileStore{dir: dir}
}

// SaveDirectory writes a snapshot taken at fetchedAt.
func (s *DirectoryFileStore) SaveDirectory(dir domain.Directory, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, directoryFilename), directorySnapshot{
		FetchedAt: fetchedAt.UTC(),
		Keys:      dir,
	})
}

// LoadDirectory returns the stored snapshot; ok is false when none exists.
func (s *DirectoryFileStore) LoadDirectory() (domain.Directory, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap directorySnapshot
	if err := readJSON(filepath.Join(s.dir, directoryFilename), &snap); err != nil {
		return nil, time.Time{}, false, err
	}
	if snap.Keys == nil {
		return nil, time.Time{}, false, nil
	}
	return snap.Keys, snap.FetchedAt, true, nil
}

// Compile-time assertion that DirectoryFileStore implements domain.DirectoryStore.
var _ domain.DirectoryStore = (*DirectoryFileStore)(nil)
