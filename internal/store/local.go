package store

import (
	"encoding/hex"
	"path/filepath"

	"heartx/internal/domain"
)

// Local bundles every advisory store for one identity.
type Local struct {
	*DraftFileStore
	*DirectoryFileStore
	*LateFileStore
	*AuxFileStore
	*CursorFileStore
	dir string
}

// NewLocal returns the stores for identity under home. The directory name is
// hex-encoded so arbitrary identity strings map to safe paths.
func NewLocal(home string, identity domain.Identity) *Local {
	dir := filepath.Join(home, "id-"+hex.EncodeToString([]byte(identity)))
	return &Local{
		DraftFileStore:     NewDraftFileStore(dir),
		DirectoryFileStore: NewDirectoryFileStore(dir),
		LateFileStore:      NewLateFileStore(dir),
		AuxFileStore:       NewAuxFileStore(dir),
		CursorFileStore:    NewCursorFileStore(dir),
		dir:                dir,
	}
}

// Dir returns the identity's directory.
func (l *Local) Dir() string { return l.dir }

// Wipe removes every cached file for the identity.
func (l *Local) Wipe() error {
	for _, name := range []string{draftsFilename, directoryFilename, lateFilename, auxFilename, cursorsFilename} {
		if err := removeFile(filepath.Join(l.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Compile-time assertion that Local implements domain.Wiper.
var _ domain.Wiper = (*Local)(nil)
