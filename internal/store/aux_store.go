package store

import (
	"path/filepath"
	"sync"

	"heartx/internal/domain"
)

const auxFilename = "aux.json"

// AuxFileStore keeps the note attached to each heart, keyed by counterpart.
type AuxFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAuxFileStore returns an AuxFileStore rooted at dir.
func NewAuxFileStore(dir string) *AuxFileStore {
	return &AuxFileStore{dir: dir}
}

// SaveAux records aux for counterpart; an empty aux removes the entry.
func (s *AuxFileStore) SaveAux(counterpart domain.Identity, aux string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, auxFilename)
	all := map[domain.Identity]string{}
	if err := readJSON(path, &all); err != nil {
		return err
	}
	if all == nil {
		all = map[domain.Identity]string{}
	}
	if aux == "" {
		delete(all, counterpart)
	} else {
		all[counterpart] = aux
	}
	return writeJSON(path, all)
}

// LoadAux returns all recorded notes; never nil.
func (s *AuxFileStore) LoadAux() (map[domain.Identity]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := map[domain.Identity]string{}
	if err := readJSON(filepath.Join(s.dir, auxFilename), &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[domain.Identity]string{}
	}
	return all, nil
}

// Compile-time assertion that AuxFileStore implements domain.AuxStore.
var _ domain.AuxStore = (*AuxFileStore)(nil)
