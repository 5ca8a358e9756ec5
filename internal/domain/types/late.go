package types

import "time"

// LateState is the reconciliation stage of a late inbox item.
type LateState int

const (
	LateArrived LateState = iota
	LatePrompted
	LateAccepted
	LateDeclined
)

func (s LateState) String() string {
	switch s {
	case LatePrompted:
		return "prompted"
	case LateAccepted:
		return "accepted"
	case LateDeclined:
		return "declined"
	default:
		return "arrived"
	}
}

// Terminal reports whether no further transition is possible.
func (s LateState) Terminal() bool { return s == LateAccepted || s == LateDeclined }

// LateItem tracks one heart that arrived after the identity committed.
type LateItem struct {
	ID          string      `json:"id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	SenderTag   SenderTag   `json:"sender_tag"`
	ArrivedAt   time.Time   `json:"arrived_at"`
	State       LateState   `json:"state"`
	DecidedAt   time.Time   `json:"decided_at,omitempty"`
}
