// Package crypto exposes the minimal primitives used by heartx.
//
// Contents
//
//   - X25519 key generation and clamping (GenerateX25519, PublicFromPrivate)
//   - Anonymous public-key encryption (SealTo, OpenWith) using NaCl sealed boxes
//   - Password and recovery-code envelopes (Seal, Open) over scrypt or Argon2id
//     with ChaCha20-Poly1305
//   - The self-signature primitive (SelfSealer) with a raw-key and an HKDF variant
//   - Shared-secret fingerprints (Fingerprint) and random strings (RandomString)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// Decryption failures surface as domain.ErrCryptoFailure, envelope failures as
// ErrOpen, so callers never learn which check rejected the input. Callers should
// treat returned secrets as sensitive and rely on Wipe when practical.
package crypto
