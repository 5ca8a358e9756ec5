package types

import (
	"encoding/base64"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(p[:])), nil
}

// UnmarshalText decodes a base64 key.
func (p *X25519Public) UnmarshalText(b []byte) error {
	raw, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(p) {
		return fmt.Errorf("public key: want %d bytes, got %d", len(p), len(raw))
	}
	copy(p[:], raw)
	return nil
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair is the per-identity asymmetric key pair.
type KeyPair struct {
	Public  X25519Public
	Private X25519Private
}

// EncryptedPrivateKey is a private key sealed under the user's password.
type EncryptedPrivateKey []byte

// Registration is what an identity publishes to the relay once.
type Registration struct {
	Identity            Identity            `json:"identity"`
	PublicKey           X25519Public        `json:"public_key"`
	EncryptedPrivateKey EncryptedPrivateKey `json:"encrypted_private_key"`
}

// Directory maps identities to their published public keys.
type Directory map[Identity]X25519Public
