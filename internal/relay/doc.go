// Package relay provides an HTTP implementation of the domain.RelayClient
// interface used by heartx, plus the small set of wire constants the
// reference relay shares with it.
//
// The relay stores and routes opaque payloads: published public keys and
// password-sealed private keys, slot sets, inbox items, claims, return
// records, verified matches and recovery capsules. It never decrypts anything.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. The caller's identity and session credential from the auth
// collaborator travel as headers on every call. Non-2xx statuses are mapped
// onto the domain error taxonomy (see statusError) and wrapped with the method,
// path and relay message to aid diagnostics.
package relay
