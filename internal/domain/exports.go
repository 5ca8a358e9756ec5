package domain

import (
	interfaces "heartx/internal/domain/interfaces"
	types "heartx/internal/domain/types"
)

// SlotCount is the fixed number of candidate positions per identity.
const SlotCount = types.SlotCount

// Slot and late-item states.
const (
	SlotEmpty     = types.SlotEmpty
	SlotDraft     = types.SlotDraft
	SlotCommitted = types.SlotCommitted

	LateArrived  = types.LateArrived
	LatePrompted = types.LatePrompted
	LateAccepted = types.LateAccepted
	LateDeclined = types.LateDeclined
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Identity            = types.Identity
	SenderTag           = types.SenderTag
	Fingerprint         = types.Fingerprint
	Credentials         = types.Credentials
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	KeyPair             = types.KeyPair
	EncryptedPrivateKey = types.EncryptedPrivateKey
	Registration        = types.Registration
	Directory           = types.Directory
	HeartRecord         = types.HeartRecord
	SlotEntry           = types.SlotEntry
	OutboundHeart       = types.OutboundHeart
	ReturnEntry         = types.ReturnEntry
	SlotSetSubmission   = types.SlotSetSubmission
	SlotSet             = types.SlotSet
	InboxItem           = types.InboxItem
	ClaimRequest        = types.ClaimRequest
	ClaimedHeart        = types.ClaimedHeart
	ReturnCandidate     = types.ReturnCandidate
	VerifyRequest       = types.VerifyRequest
	VerifyResult        = types.VerifyResult
	VerifiedMatch       = types.VerifiedMatch
	MatchRecord         = types.MatchRecord
	SlotState           = types.SlotState
	Slot                = types.Slot
	Draft               = types.Draft
	LateState           = types.LateState
	LateItem            = types.LateItem
	RecoveryCapsule     = types.RecoveryCapsule
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyRelay       = interfaces.KeyRelay
	DirectoryRelay = interfaces.DirectoryRelay
	SlotRelay      = interfaces.SlotRelay
	InboxRelay     = interfaces.InboxRelay
	RecoveryRelay  = interfaces.RecoveryRelay
	RelayClient    = interfaces.RelayClient
	DraftStore     = interfaces.DraftStore
	DirectoryStore = interfaces.DirectoryStore
	LateStore      = interfaces.LateStore
	AuxStore       = interfaces.AuxStore
	CursorStore    = interfaces.CursorStore
	Wiper          = interfaces.Wiper
	Session        = interfaces.Session
)
