// Package keyvault manages the per-identity X25519 key pair.
//
// The private key is generated locally, sealed under the user's password
// (scrypt + ChaCha20-Poly1305) and published to the relay in that form only.
// Each login fetches the sealed key, opens it and hands back a Session that
// keeps the key in a memguard LockedBuffer until Close.
//
// Every unlock failure, whatever the cause, is domain.ErrAuthFailure.
// Consecutive failures for one identity lock further attempts for a growing
// interval (1s doubling to 32s).
package keyvault
