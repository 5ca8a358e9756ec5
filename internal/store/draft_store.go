package store

import (
	"path/filepath"
	"sort"
	"sync"

	"heartx/internal/domain"
)

const draftsFilename = "drafts.json"

// DraftFileStore keeps uncommitted selections between runs.
type DraftFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewDraftFileStore returns a DraftFileStore rooted at dir.
func NewDraftFileStore(dir string) *DraftFileStore {
	return &DraftFileStore{dir: dir}
}

// SaveDrafts replaces the stored drafts.
func (s *DraftFileStore) SaveDrafts(drafts []domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Draft, 0, len(drafts))
	for _, d := range drafts {
		if d.Target != "" && d.Index >= 0 && d.Index < domain.SlotCount {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return writeJSON(filepath.Join(s.dir, draftsFilename), out)
}

// LoadDrafts returns the stored drafts, or none.
func (s *DraftFileStore) LoadDrafts() ([]domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drafts []domain.Draft
	if err := readJSON(filepath.Join(s.dir, draftsFilename), &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// Compile-time assertion that DraftFileStore implements domain.DraftStore.
var _ domain.DraftStore = (*DraftFileStore)(nil)
