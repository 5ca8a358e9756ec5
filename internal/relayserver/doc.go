// Package relayserver is the in-memory reference relay used by heartx during
// development and tests.
//
// HTTP API (identity from the X-Heartx-Identity header on every /v1 route)
//
//	PUT    /v1/keys       register public key + password-sealed private key (once)
//	GET    /v1/keys       fetch own registration
//	GET    /v1/directory  bulk identity -> public key map
//	GET    /v1/slots      own slot set and version
//	PUT    /v1/slots      replace the slot set; 409 on a stale expected_version
//	GET    /v1/inbox      every heart not sent by the caller, ?since=RFC3339
//	POST   /v1/claims     claim a decrypted heart; repeats return the same record
//	GET    /v1/claims     own claims
//	POST   /v1/returns    late return entries for claimed hearts
//	GET    /v1/returns    pending return candidates from others
//	POST   /v1/matches    reveal a shared secret to verify a match
//	GET    /v1/matches    own verified matches
//	PUT    /v1/recovery   replace the recovery capsule
//	GET    /v1/recovery   fetch the recovery capsule
//	DELETE /v1/state      forget everything the caller contributed
//	GET    /metrics       Prometheus metrics (when enabled)
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Responses are JSON. Non-2xx statuses carry {"error": "..."}.
//   - Inbox items are stored without the submitter identity; the relay links
//     a heart to its sender only through the sender's own slot set.
//   - An inbox item is late for a caller when it arrived after the caller's
//     first commit.
//   - Requests are rate limited per identity with a token bucket.
//
// The relay never sees private keys. It learns a shared secret only when the
// heart's sender reveals it to prove a match.
package relayserver
