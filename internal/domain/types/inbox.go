package types

import "time"

// InboxItem is a relay-delivered counterpart payload.
type InboxItem struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	SenderTag SenderTag `json:"sender_tag"`
	ArrivedAt time.Time `json:"arrived_at"`
	// Late is set by the relay when the item arrived after the caller's commit.
	Late bool `json:"late"`
}

// ClaimRequest asks the relay to record that the caller decrypted an item.
type ClaimRequest struct {
	Payload     []byte      `json:"payload"`
	Fingerprint Fingerprint `json:"fingerprint"`
	SenderTag   SenderTag   `json:"sender_tag"`
}

// ClaimedHeart is an inbox item together with its decrypted fingerprint.
type ClaimedHeart struct {
	InboxItem
	Fingerprint Fingerprint `json:"fingerprint"`
	ClaimedAt   time.Time   `json:"claimed_at"`
}

// ReturnCandidate is someone else's claimed fingerprint, re-encrypted toward us.
type ReturnCandidate struct {
	ID      string `json:"id"`
	Payload []byte `json:"payload"`
	Aux     string `json:"aux,omitempty"`
}

// VerifyRequest reveals a shared secret to prove a match.
type VerifyRequest struct {
	CandidatePayload []byte `json:"candidate_payload"`
	Secret           string `json:"secret"`
}

// VerifyResult is the relay's answer to a verify request.
type VerifyResult struct {
	Fingerprint    Fingerprint `json:"fingerprint"`
	AlreadyMatched bool        `json:"already_matched"`
}

// VerifiedMatch is terminal once recorded.
type VerifiedMatch struct {
	Fingerprint  Fingerprint `json:"fingerprint"`
	SharedSecret string      `json:"-"`
	Counterpart  Identity    `json:"counterpart"`
	Aux          string      `json:"aux,omitempty"`
}

// MatchRecord is a relay-side match between two identities.
type MatchRecord struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Counterpart Identity    `json:"counterpart"`
	MatchedAt   time.Time   `json:"matched_at"`
}
