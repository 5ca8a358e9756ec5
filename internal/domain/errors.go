package domain

import (
	"errors"
)

// Error taxonomy shared by every component. Wrap with context; compare with errors.Is.
var (
	// ErrAuthFailure covers a bad password on unlock or a bad recovery code.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrCryptoFailure covers malformed ciphertext or the wrong key.
	ErrCryptoFailure = errors.New("decryption failed")
	// ErrNotFound means no public key or no data yet for an identity.
	ErrNotFound = errors.New("not found")
	// ErrCapacityExceeded means the slot budget is exhausted.
	ErrCapacityExceeded = errors.New("all slots are occupied")
	// ErrNetworkFailure is transient and safe for the caller to retry.
	ErrNetworkFailure = errors.New("relay unreachable")
	// ErrConflict means a slot mutation lost a race against another session.
	ErrConflict = errors.New("slot set changed concurrently")

	// ErrNeedsKeyFetch asks the caller to consult the directory and retry.
	ErrNeedsKeyFetch = errors.New("counterpart public key not loaded")
	// ErrRejected is a relay refusal that retrying will not fix.
	ErrRejected = errors.New("relay rejected request")
	// ErrSessionClosed is returned after logout.
	ErrSessionClosed = errors.New("session closed")
)

// genericFailure is the one message shown for auth and crypto failures.
const genericFailure = "could not unlock: check your password or code and try again"

// UserMessage renders err for people without revealing which factor failed.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthFailure), errors.Is(err, ErrCryptoFailure):
		return genericFailure
	case errors.Is(err, ErrCapacityExceeded):
		return "all 4 slots are in use; withdraw one first"
	case errors.Is(err, ErrConflict):
		return "your selections changed in another session; reload and try again"
	case errors.Is(err, ErrNetworkFailure):
		return "relay unreachable; try again"
	case errors.Is(err, ErrNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

// Retryable reports whether err may be retried without a new user decision.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}
