package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"

	"heartx/internal/domain"
)

// SealTo encrypts msg so that only the holder of the private half of to can read it.
// The sender stays anonymous: a fresh ephemeral key is used per call.
func SealTo(to domain.X25519Public, msg []byte) ([]byte, error) {
	pub := [32]byte(to)
	return box.SealAnonymous(nil, msg, &pub, rand.Reader)
}

// OpenWith decrypts a SealTo ciphertext.
func OpenWith(kp domain.KeyPair, sealed []byte) ([]byte, error) {
	if len(sealed) < box.AnonymousOverhead {
		return nil, domain.ErrCryptoFailure
	}
	pub, priv := [32]byte(kp.Public), [32]byte(kp.Private)
	defer Wipe(priv[:])
	out, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return nil, domain.ErrCryptoFailure
	}
	return out, nil
}
