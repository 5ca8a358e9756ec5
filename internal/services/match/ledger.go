package match

import (
	"sort"
	"sync"
	"time"

	"heartx/internal/domain"
)

// Ledger is the session-scoped record of what this identity has claimed and verified.
type Ledger struct {
	mu        sync.Mutex
	owner     domain.Identity
	claimed   map[string]domain.ClaimedHeart
	tallies   map[domain.SenderTag]int
	verified  map[domain.Fingerprint]domain.VerifiedMatch
	lastFetch time.Time
}

// NewLedger returns an empty ledger for owner.
func NewLedger(owner domain.Identity) *Ledger {
	return &Ledger{
		owner:    owner,
		claimed:  make(map[string]domain.ClaimedHeart),
		tallies:  make(map[domain.SenderTag]int),
		verified: make(map[domain.Fingerprint]domain.VerifiedMatch),
	}
}

// Owner returns the identity the ledger belongs to.
func (l *Ledger) Owner() domain.Identity { return l.owner }

// Claimed lists claimed hearts in arrival order.
func (l *Ledger) Claimed() []domain.ClaimedHeart {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ClaimedHeart, 0, len(l.claimed))
	for _, c := range l.claimed {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivedAt.Before(out[j].ArrivedAt) })
	return out
}

// Tallies counts received hearts per sender tag.
func (l *Ledger) Tallies() map[domain.SenderTag]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[domain.SenderTag]int, len(l.tallies))
	for k, v := range l.tallies {
		out[k] = v
	}
	return out
}

// Matches lists verified matches.
func (l *Ledger) Matches() []domain.VerifiedMatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.VerifiedMatch, 0, len(l.verified))
	for _, m := range l.verified {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Counterpart < out[j].Counterpart })
	return out
}

// Verified reports whether fp already produced a match.
func (l *Ledger) Verified(fp domain.Fingerprint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.verified[fp]
	return ok
}

func (l *Ledger) hasClaimed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.claimed[id]
	return ok
}

func (l *Ledger) addClaim(c domain.ClaimedHeart) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.claimed[c.ID]; ok {
		return
	}
	l.claimed[c.ID] = c
	l.tallies[c.SenderTag]++
}

func (l *Ledger) addMatch(m domain.VerifiedMatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verified[m.Fingerprint] = m
}

func (l *Ledger) cursor() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFetch
}

func (l *Ledger) setCursor(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastFetch = t
}
