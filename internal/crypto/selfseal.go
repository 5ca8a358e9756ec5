package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"heartx/internal/domain"
)

// SelfSealer produces and opens the private comparison token stored with each
// sent heart. Only the holder of priv can open what Seal produced.
type SelfSealer interface {
	Name() string
	Seal(priv domain.X25519Private, plaintext []byte) ([]byte, error)
	Open(priv domain.X25519Private, sealed []byte) ([]byte, error)
}

// Self-sealer names accepted by SelfSealerByName.
const (
	SelfSealRaw = "raw"
	SelfSealKDF = "hkdf"
)

// SelfSealerByName returns the sealer registered under name; unknown names yield nil.
func SelfSealerByName(name string) SelfSealer {
	switch name {
	case SelfSealRaw, "":
		return RawKeySealer{}
	case SelfSealKDF:
		return DerivedKeySealer{}
	default:
		return nil
	}
}

// RawKeySealer keys XChaCha20-Poly1305 directly with the X25519 private key.
//
// Tokens sealed this way are only readable by RawKeySealer; switching sealers
// requires re-committing the slot set.
type RawKeySealer struct{}

func (RawKeySealer) Name() string { return SelfSealRaw }

func (RawKeySealer) Seal(priv domain.X25519Private, plaintext []byte) ([]byte, error) {
	return xseal(priv[:], plaintext)
}

func (RawKeySealer) Open(priv domain.X25519Private, sealed []byte) ([]byte, error) {
	return xopen(priv[:], sealed)
}

// DerivedKeySealer inserts an HKDF-SHA256 step between the private key and the cipher.
type DerivedKeySealer struct{}

var selfSealInfo = []byte("heartx/self-signature/v1")

func (DerivedKeySealer) Name() string { return SelfSealKDF }

func (DerivedKeySealer) Seal(priv domain.X25519Private, plaintext []byte) ([]byte, error) {
	key, err := deriveSelfKey(priv)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)
	return xseal(key, plaintext)
}

func (DerivedKeySealer) Open(priv domain.X25519Private, sealed []byte) ([]byte, error) {
	key, err := deriveSelfKey(priv)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)
	return xopen(key, sealed)
}

func deriveSelfKey(priv domain.X25519Private) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, priv[:], nil, selfSealInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// xseal returns nonce || ciphertext.
func xseal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func xopen(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, domain.ErrCryptoFailure
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, domain.ErrCryptoFailure
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, domain.ErrCryptoFailure
	}
	return pt, nil
}
