// Package heart builds and opens Heart records, the cryptographic core of the
// exchange.
//
// A heart from A to B is built from a shared secret "A-B-<128 random chars>"
// (the pair in lexicographic order, so both directions share one layout):
//
//   - fingerprint        = hex(SHA-256(secret))
//   - selfRecord         = SealTo(secret, A.pub), lets A recover the secret later
//   - selfSignature      = SelfSealer(fingerprint, A.priv), A's private comparison token
//   - counterpartPayload = SealTo(fingerprint, B.pub), the only value relayed to others
//
// A Codec holds no identity state; callers pass key pairs per call.
package heart
