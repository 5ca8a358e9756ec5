package relay

import "heartx/internal/domain"

// Headers carrying the collaborator-supplied credentials.
const (
	HeaderIdentity      = "X-Heartx-Identity"
	HeaderAuthorization = "Authorization"
)

// Routes served by the relay.
const (
	PathKeys      = "/v1/keys"
	PathDirectory = "/v1/directory"
	PathSlots     = "/v1/slots"
	PathInbox     = "/v1/inbox"
	PathClaims    = "/v1/claims"
	PathReturns   = "/v1/returns"
	PathMatches   = "/v1/matches"
	PathRecovery  = "/v1/recovery"
	PathState     = "/v1/state"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// CapsuleBody wraps a recovery capsule.
type CapsuleBody struct {
	Capsule domain.RecoveryCapsule `json:"capsule"`
}

// ReturnsBody wraps late return entries.
type ReturnsBody struct {
	Entries []domain.ReturnEntry `json:"entries"`
}
