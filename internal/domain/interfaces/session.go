package interfaces

import domaintypes "heartx/internal/domain/types"

// Session is an unlocked identity. KeyPair returns a copy the caller must wipe.
type Session interface {
	Identity() domaintypes.Identity
	PublicKey() domaintypes.X25519Public
	KeyPair() (domaintypes.KeyPair, error)
}
