package interfaces

import (
	"context"
	"time"

	domaintypes "heartx/internal/domain/types"
)

// KeyRelay publishes and fetches an identity's key material.
type KeyRelay interface {
	PublishKeys(ctx context.Context, reg domaintypes.Registration) error
	FetchKeys(ctx context.Context) (domaintypes.Registration, error)
}

// DirectoryRelay serves the bulk identity to public key map.
type DirectoryRelay interface {
	FetchDirectory(ctx context.Context) (domaintypes.Directory, error)
}

// SlotRelay holds the authoritative slot set.
type SlotRelay interface {
	FetchSlotSet(ctx context.Context) (domaintypes.SlotSet, error)
	SubmitSlotSet(
		ctx context.Context,
		sub domaintypes.SlotSetSubmission,
	) (domaintypes.SlotSet, error)
	ListClaims(ctx context.Context) ([]domaintypes.ClaimedHeart, error)
}

// InboxRelay covers claiming, the return path and match verification.
type InboxRelay interface {
	ListInbox(ctx context.Context, since time.Time) ([]domaintypes.InboxItem, error)
	Claim(ctx context.Context, req domaintypes.ClaimRequest) (domaintypes.ClaimedHeart, error)
	SubmitReturns(ctx context.Context, entries []domaintypes.ReturnEntry) error
	ListReturnCandidates(ctx context.Context) ([]domaintypes.ReturnCandidate, error)
	VerifyMatch(
		ctx context.Context,
		req domaintypes.VerifyRequest,
	) (domaintypes.VerifyResult, error)
	ListMatches(ctx context.Context) ([]domaintypes.MatchRecord, error)
}

// RecoveryRelay stores the single active recovery capsule.
type RecoveryRelay interface {
	RegisterRecoveryCapsule(ctx context.Context, capsule domaintypes.RecoveryCapsule) error
	FetchRecoveryCapsule(ctx context.Context) (domaintypes.RecoveryCapsule, error)
	ResetState(ctx context.Context) error
}

// RelayClient is how we talk to the relay, all with context.
type RelayClient interface {
	KeyRelay
	DirectoryRelay
	SlotRelay
	InboxRelay
	RecoveryRelay
}
