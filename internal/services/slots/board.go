package slots

import (
	"sync"

	"heartx/internal/domain"
)

// Board is the session-scoped view of an identity's four slots.
//
// Mutations go through Service, which holds mu for the whole operation so
// each board has at most one slot-set request in flight.
type Board struct {
	mu    sync.Mutex
	owner domain.Identity
	slots [domain.SlotCount]domain.Slot
	sent  domain.SlotSet
}

// NewBoard returns an empty board for owner. Call Service.Sync to load it.
func NewBoard(owner domain.Identity) *Board {
	b := &Board{owner: owner}
	for i := range b.slots {
		b.slots[i].Index = i
	}
	return b
}

// Owner returns the identity the board belongs to.
func (b *Board) Owner() domain.Identity { return b.owner }

// Slots returns a copy of the four slots.
func (b *Board) Slots() []domain.Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Slot(nil), b.slots[:]...)
}

// Sent returns the last slot set the relay acknowledged.
func (b *Board) Sent() domain.SlotSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

// Version is the relay version the next submission must expect.
func (b *Board) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent.Version
}

// Committed returns the targets of committed slots.
func (b *Board) Committed() []domain.Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committedLocked()
}

func (b *Board) committedLocked() []domain.Slot {
	var out []domain.Slot
	for _, s := range b.slots {
		if s.State == domain.SlotCommitted {
			out = append(out, s)
		}
	}
	return out
}

func (b *Board) draftsLocked() []domain.Draft {
	var out []domain.Draft
	for _, s := range b.slots {
		if s.State == domain.SlotDraft {
			out = append(out, domain.Draft{Index: s.Index, Target: s.Target, Aux: s.Aux})
		}
	}
	return out
}
