package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// envelopeVersion is the current sealed-blob format.
	envelopeVersion = 1
	saltBytes       = 16

	KDFScrypt   = "scrypt"
	KDFArgon2id = "argon2id"

	// Upper bounds applied when opening so a hostile blob cannot demand unbounded work.
	maxScryptN      = 1 << 20
	maxArgonMemory  = 256 * 1024
	maxArgonTime    = 16
	maxArgonThreads = 16
)

// ErrOpen is returned for every failure to open an envelope.
var ErrOpen = errors.New("wrong secret or corrupted envelope")

// Params selects the KDF and its cost.
type Params struct {
	KDF string
	// scrypt
	N, R, P int
	// argon2id; Memory is in KiB
	Time    uint32
	Memory  uint32
	Threads uint8
}

var (
	// ScryptParams protect the private key under the account password.
	ScryptParams = Params{KDF: KDFScrypt, N: 1 << 15, R: 8, P: 1}
	// Argon2idParams protect the password under a recovery code.
	Argon2idParams = Params{KDF: KDFArgon2id, Time: 2, Memory: 64 * 1024, Threads: 1}
)

// envelope is the JSON structure holding the ciphertext and KDF parameters.
type envelope struct {
	V       int    `json:"v"`
	KDF     string `json:"kdf"`
	Salt    []byte `json:"salt"`
	N       int    `json:"n,omitempty"`
	R       int    `json:"r,omitempty"`
	P       int    `json:"p,omitempty"`
	Time    uint32 `json:"t,omitempty"`
	Memory  uint32 `json:"m,omitempty"`
	Threads uint8  `json:"threads,omitempty"`
	Cipher  []byte `json:"cipher"`
}

// Seal derives a key from secret and seals plaintext into a JSON envelope.
func Seal(secret, plaintext []byte, p Params) ([]byte, error) {
	env := envelope{
		V: envelopeVersion, KDF: p.KDF,
		N: p.N, R: p.R, P: p.P,
		Time: p.Time, Memory: p.Memory, Threads: p.Threads,
		Salt: make([]byte, saltBytes),
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, err
	}
	key, err := deriveKey(secret, env)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; salt-bound key is unique per seal
	env.Cipher = aead.Seal(nil, nonce[:], plaintext, env.Salt)
	return json.Marshal(env)
}

// Open reverses Seal. Every failure collapses to ErrOpen.
func Open(secret, blob []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, ErrOpen
	}
	if env.V != envelopeVersion || len(env.Salt) != saltBytes || !withinBounds(env) {
		return nil, ErrOpen
	}
	key, err := deriveKey(secret, env)
	if err != nil {
		return nil, ErrOpen
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrOpen
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], env.Cipher, env.Salt)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

func deriveKey(secret []byte, env envelope) ([]byte, error) {
	switch env.KDF {
	case KDFScrypt:
		return scrypt.Key(secret, env.Salt, env.N, env.R, env.P, chacha20poly1305.KeySize)
	case KDFArgon2id:
		if env.Time == 0 || env.Memory == 0 || env.Threads == 0 {
			return nil, errors.New("argon2id: zero cost parameter")
		}
		return argon2.IDKey(secret, env.Salt, env.Time, env.Memory, env.Threads, chacha20poly1305.KeySize), nil
	default:
		return nil, errors.New("unknown kdf " + env.KDF)
	}
}

func withinBounds(env envelope) bool {
	switch env.KDF {
	case KDFScrypt:
		return env.N > 1 && env.N <= maxScryptN && env.R > 0 && env.P > 0
	case KDFArgon2id:
		return env.Time <= maxArgonTime && env.Memory <= maxArgonMemory && env.Threads <= maxArgonThreads
	default:
		return false
	}
}
