package interfaces

import (
	"time"

	domaintypes "heartx/internal/domain/types"
)

// DraftStore keeps the advisory local copy of uncommitted selections.
type DraftStore interface {
	SaveDrafts(drafts []domaintypes.Draft) error
	LoadDrafts() ([]domaintypes.Draft, error)
}

// DirectoryStore persists the last directory snapshot.
type DirectoryStore interface {
	SaveDirectory(dir domaintypes.Directory, fetchedAt time.Time) error
	LoadDirectory() (dir domaintypes.Directory, fetchedAt time.Time, ok bool, err error)
}

// LateStore persists per-item reconciliation state.
type LateStore interface {
	SaveLateItems(items map[string]domaintypes.LateItem) error
	LoadLateItems() (map[string]domaintypes.LateItem, error)
}

// AuxStore keeps per-counterpart auxiliary metadata past the original submission.
type AuxStore interface {
	SaveAux(counterpart domaintypes.Identity, aux string) error
	LoadAux() (map[domaintypes.Identity]string, error)
}

// CursorStore remembers poll positions between runs.
type CursorStore interface {
	SaveCursor(name string, at time.Time) error
	LoadCursor(name string) (time.Time, error)
}

// Wiper drops all local state for the identity.
type Wiper interface {
	Wipe() error
}
