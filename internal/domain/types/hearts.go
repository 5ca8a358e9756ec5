package types

import "time"

// SlotCount is the fixed number of candidate positions per identity.
const SlotCount = 4

// HeartRecord is the full output of building one heart.
//
// SharedSecret is ephemeral plaintext and never serialised.
type HeartRecord struct {
	SharedSecret       string      `json:"-"`
	Fingerprint        Fingerprint `json:"fingerprint"`
	SelfRecord         []byte      `json:"self_record"`
	SelfSignature      []byte      `json:"self_signature"`
	CounterpartPayload []byte      `json:"counterpart_payload"`
}

// Entry returns the sender-only half of the record.
func (r HeartRecord) Entry() *SlotEntry {
	return &SlotEntry{SelfRecord: r.SelfRecord, SelfSignature: r.SelfSignature}
}

// Outbound returns the anonymous half of the record.
func (r HeartRecord) Outbound() *OutboundHeart {
	return &OutboundHeart{Fingerprint: r.Fingerprint, Payload: r.CounterpartPayload}
}

// SlotEntry is what the relay keeps for one committed position. Both parts
// are sealed to the sender, so a stored slot set names no fingerprint and no
// deliverable payload.
type SlotEntry struct {
	SelfRecord    []byte `json:"self_record"`
	SelfSignature []byte `json:"self_signature"`
}

// OutboundHeart is the anonymous half of a heart. The relay files it in the
// shared inbox and keeps no record of who submitted it.
type OutboundHeart struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Payload     []byte      `json:"payload"`
}

// ReturnEntry re-encrypts a claimed fingerprint toward one of the claimant's targets.
type ReturnEntry struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Payload     []byte      `json:"payload"`
	Aux         string      `json:"aux,omitempty"`
}

// SlotSetSubmission replaces the caller's whole slot set in one request.
//
// A nil entry is an empty slot. Hearts carries one outbound heart for every
// entry that is not already in the stored set.
type SlotSetSubmission struct {
	ExpectedVersion uint64                `json:"expected_version"`
	SenderTag       SenderTag             `json:"sender_tag"`
	Entries         [SlotCount]*SlotEntry `json:"entries"`
	Hearts          []OutboundHeart       `json:"hearts,omitempty"`
	Returns         []ReturnEntry         `json:"returns,omitempty"`
}

// SlotSet is the relay-held state of an identity's committed slots.
//
// CommittedAt is the first commit; inbox items arriving after it are late.
type SlotSet struct {
	Version     uint64                `json:"version"`
	CommittedAt time.Time             `json:"committed_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Entries     [SlotCount]*SlotEntry `json:"entries"`
}

// Committed reports whether the identity has ever committed.
func (s SlotSet) Committed() bool { return s.Version > 0 }
