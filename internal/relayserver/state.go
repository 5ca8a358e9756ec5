package relayserver

import (
	"bytes"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/protocol/heart"
)

// errBadRequest marks malformed input; it maps to 400.
var errBadRequest = errors.New("bad request")

type account struct {
	reg       domain.Registration
	slots     domain.SlotSet
	senderTag domain.SenderTag
	capsule   domain.RecoveryCapsule
}

// inboxRecord carries no submitter identity. Accounts store only sender-sealed
// slot entries, so nothing the relay keeps ties an item to the account that
// posted it.
type inboxRecord struct {
	id        string
	fp        domain.Fingerprint
	payload   []byte
	tag       domain.SenderTag
	arrivedAt time.Time
}

type claimRecord struct {
	claimant  domain.Identity
	claimedAt time.Time
}

type returnRecord struct {
	id        string
	entry     domain.ReturnEntry
	claimant  domain.Identity
	createdAt time.Time
	consumed  bool
}

type matchRecord struct {
	fp        domain.Fingerprint
	verifier  domain.Identity
	claimant  domain.Identity
	matchedAt time.Time
}

// State is the relay's in-memory store. All state is lost on process exit.
type State struct {
	mu  sync.Mutex
	now func() time.Time

	accounts map[domain.Identity]*account
	items    map[domain.Fingerprint]*inboxRecord
	claims   map[domain.Fingerprint]*claimRecord
	returns  map[string]*returnRecord
	matches  map[domain.Fingerprint]*matchRecord
}

// NewState returns an empty store using now as its clock; nil means time.Now.
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		now:      now,
		accounts: make(map[domain.Identity]*account),
		items:    make(map[domain.Fingerprint]*inboxRecord),
		claims:   make(map[domain.Fingerprint]*claimRecord),
		returns:  make(map[string]*returnRecord),
		matches:  make(map[domain.Fingerprint]*matchRecord),
	}
}

// PutKeys registers id once; re-registration requires a reset.
func (s *State) PutKeys(id domain.Identity, reg domain.Registration) error {
	if reg.Identity != id {
		return errors.Wrap(errBadRequest, "registration identity does not match caller")
	}
	if reg.PublicKey.IsZero() || len(reg.EncryptedPrivateKey) == 0 {
		return errors.Wrap(errBadRequest, "public key and encrypted private key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return errors.Wrap(domain.ErrConflict, "already registered")
	}
	s.accounts[id] = &account{reg: reg}
	return nil
}

// Keys returns id's registration.
func (s *State) Keys(id domain.Identity) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return domain.Registration{}, errors.Wrap(domain.ErrNotFound, "not registered")
	}
	return acct.reg, nil
}

// Directory returns every registered public key.
func (s *State) Directory() domain.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(domain.Directory, len(s.accounts))
	for id, acct := range s.accounts {
		out[id] = acct.reg.PublicKey
	}
	return out
}

// Slots returns id's slot set; an uncommitted account has version 0.
func (s *State) Slots(id domain.Identity) (domain.SlotSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return domain.SlotSet{}, errors.Wrap(domain.ErrNotFound, "not registered")
	}
	return acct.slots, nil
}

// SubmitSlots replaces id's slot set wholesale if ExpectedVersion matches.
//
// Every entry not byte-identical to a stored one must come with exactly one
// outbound heart, which goes to the shared inbox unattributed. Hearts of
// withdrawn entries stay there; without the sender's self record they can
// never be verified.
func (s *State) SubmitSlots(id domain.Identity, sub domain.SlotSetSubmission) (domain.SlotSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return domain.SlotSet{}, errors.Wrap(domain.ErrRejected, "register before committing")
	}
	if sub.ExpectedVersion != acct.slots.Version {
		return domain.SlotSet{}, errors.Wrapf(domain.ErrConflict,
			"expected version %d, relay has %d", sub.ExpectedVersion, acct.slots.Version)
	}

	fresh := 0
	for i, e := range sub.Entries {
		if e == nil {
			continue
		}
		if len(e.SelfRecord) == 0 || len(e.SelfSignature) == 0 {
			return domain.SlotSet{}, errors.Wrapf(errBadRequest, "slot %d incomplete", i)
		}
		for j := 0; j < i; j++ {
			if sameEntry(sub.Entries[j], e) {
				return domain.SlotSet{}, errors.Wrapf(errBadRequest, "slot %d repeats slot %d", i, j)
			}
		}
		if !acct.holds(e) {
			fresh++
		}
	}
	if len(sub.Hearts) != fresh {
		return domain.SlotSet{}, errors.Wrapf(errBadRequest, "%d new slots but %d hearts", fresh, len(sub.Hearts))
	}
	seen := make(map[domain.Fingerprint]bool, len(sub.Hearts))
	for i, h := range sub.Hearts {
		if !validFingerprint(h.Fingerprint) || len(h.Payload) == 0 || seen[h.Fingerprint] {
			return domain.SlotSet{}, errors.Wrapf(errBadRequest, "heart %d invalid", i)
		}
		seen[h.Fingerprint] = true
		if item, exists := s.items[h.Fingerprint]; exists && !bytes.Equal(item.payload, h.Payload) {
			return domain.SlotSet{}, errors.Wrapf(domain.ErrRejected, "heart %d collides with an existing heart", i)
		}
	}
	for _, r := range sub.Returns {
		if err := s.checkReturn(id, r); err != nil {
			return domain.SlotSet{}, err
		}
	}

	now := s.now()
	for _, h := range sub.Hearts {
		if _, exists := s.items[h.Fingerprint]; exists {
			continue
		}
		s.items[h.Fingerprint] = &inboxRecord{
			id:        uuid.NewString(),
			fp:        h.Fingerprint,
			payload:   h.Payload,
			tag:       sub.SenderTag,
			arrivedAt: now,
		}
	}

	for rid, r := range s.returns {
		if r.claimant == id && !r.consumed {
			delete(s.returns, rid)
		}
	}
	s.addReturns(id, sub.Returns, now)

	if !acct.slots.Committed() {
		acct.slots.CommittedAt = now
	}
	acct.slots.Version++
	acct.slots.UpdatedAt = now
	acct.slots.Entries = sub.Entries
	acct.senderTag = sub.SenderTag
	return acct.slots, nil
}

// Inbox lists every heart that arrived after since, the caller's own
// included; the relay cannot tell them apart and callers skip what they
// cannot open.
func (s *State) Inbox(id domain.Identity, since time.Time) []domain.InboxItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[id]
	out := make([]domain.InboxItem, 0, len(s.items))
	for _, item := range s.items {
		if !since.IsZero() && !item.arrivedAt.After(since) {
			continue
		}
		out = append(out, s.view(acct, item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivedAt.Before(out[j].ArrivedAt) })
	return out
}

// Claim records that id decrypted the item with req.Fingerprint. Repeating a
// claim returns the original record.
func (s *State) Claim(id domain.Identity, req domain.ClaimRequest) (domain.ClaimedHeart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[req.Fingerprint]
	if !ok || !bytes.Equal(item.payload, req.Payload) {
		return domain.ClaimedHeart{}, errors.Wrap(domain.ErrNotFound, "no such heart")
	}
	acct := s.accounts[id]
	if acct == nil {
		return domain.ClaimedHeart{}, errors.Wrap(domain.ErrRejected, "register before claiming")
	}
	c, ok := s.claims[req.Fingerprint]
	if ok && c.claimant != id {
		return domain.ClaimedHeart{}, errors.Wrap(domain.ErrRejected, "heart already claimed")
	}
	if !ok {
		c = &claimRecord{claimant: id, claimedAt: s.now()}
		s.claims[req.Fingerprint] = c
	}
	return domain.ClaimedHeart{
		InboxItem:   s.view(acct, item),
		Fingerprint: item.fp,
		ClaimedAt:   c.claimedAt,
	}, nil
}

// Claims lists id's claims in arrival order.
func (s *State) Claims(id domain.Identity) []domain.ClaimedHeart {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[id]
	var out []domain.ClaimedHeart
	for fp, c := range s.claims {
		if c.claimant != id {
			continue
		}
		item, ok := s.items[fp]
		if !ok {
			continue
		}
		out = append(out, domain.ClaimedHeart{
			InboxItem:   s.view(acct, item),
			Fingerprint: fp,
			ClaimedAt:   c.claimedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivedAt.Before(out[j].ArrivedAt) })
	return out
}

// AddReturns appends late return entries for fingerprints id has claimed.
func (s *State) AddReturns(id domain.Identity, entries []domain.ReturnEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return errors.Wrap(domain.ErrRejected, "register before returning")
	}
	for _, r := range entries {
		if err := s.checkReturn(id, r); err != nil {
			return err
		}
	}
	s.addReturns(id, entries, s.now())
	return nil
}

// Returns lists pending return records not created by id.
func (s *State) Returns(id domain.Identity) []domain.ReturnCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*returnRecord, 0, len(s.returns))
	for _, r := range s.returns {
		if r.claimant != id && !r.consumed {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].createdAt.Before(recs[j].createdAt) })

	out := make([]domain.ReturnCandidate, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.ReturnCandidate{ID: r.id, Payload: r.entry.Payload, Aux: r.entry.Aux})
	}
	return out
}

// Verify accepts a revealed secret as proof of a mutual match.
//
// The secret must hash to the fingerprint of a return record carrying the
// candidate payload, that fingerprint must be claimed by the return's
// creator, and the secret must name the caller and that claimant. Only the
// heart's sender can produce such a secret.
func (s *State) Verify(id domain.Identity, req domain.VerifyRequest) (domain.VerifyResult, error) {
	fp := crypto.Fingerprint(req.Secret)

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *returnRecord
	for _, r := range s.returns {
		if r.entry.Fingerprint == fp && bytes.Equal(r.entry.Payload, req.CandidatePayload) {
			rec = r
			break
		}
	}
	if rec == nil {
		return domain.VerifyResult{}, errors.Wrap(domain.ErrRejected, "no return matches the revealed secret")
	}
	if m, ok := s.matches[fp]; ok {
		if m.verifier != id {
			return domain.VerifyResult{}, errors.Wrap(domain.ErrRejected, "not the sender of this heart")
		}
		return domain.VerifyResult{Fingerprint: fp, AlreadyMatched: true}, nil
	}
	c, ok := s.claims[fp]
	if !ok || c.claimant != rec.claimant {
		return domain.VerifyResult{}, errors.Wrap(domain.ErrRejected, "heart not claimed by the returner")
	}
	if _, ok := s.accounts[id]; !ok {
		return domain.VerifyResult{}, errors.Wrap(domain.ErrRejected, "register before verifying")
	}
	if who, err := heart.Counterpart(req.Secret, id); err != nil || who != rec.claimant {
		return domain.VerifyResult{}, errors.Wrap(domain.ErrRejected, "secret does not name both parties")
	}

	s.matches[fp] = &matchRecord{fp: fp, verifier: id, claimant: rec.claimant, matchedAt: s.now()}
	rec.consumed = true
	return domain.VerifyResult{Fingerprint: fp}, nil
}

// Matches lists verified matches involving id.
func (s *State) Matches(id domain.Identity) []domain.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.MatchRecord
	for _, m := range s.matches {
		switch id {
		case m.verifier:
			out = append(out, domain.MatchRecord{Fingerprint: m.fp, Counterpart: m.claimant, MatchedAt: m.matchedAt})
		case m.claimant:
			out = append(out, domain.MatchRecord{Fingerprint: m.fp, Counterpart: m.verifier, MatchedAt: m.matchedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchedAt.Before(out[j].MatchedAt) })
	return out
}

// PutCapsule replaces id's recovery capsule.
func (s *State) PutCapsule(id domain.Identity, capsule domain.RecoveryCapsule) error {
	if len(capsule) == 0 {
		return errors.Wrap(errBadRequest, "empty capsule")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return errors.Wrap(domain.ErrRejected, "register before adding a recovery code")
	}
	acct.capsule = append(domain.RecoveryCapsule(nil), capsule...)
	return nil
}

// Capsule returns id's recovery capsule.
func (s *State) Capsule(id domain.Identity) (domain.RecoveryCapsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok || len(acct.capsule) == 0 {
		return nil, errors.Wrap(domain.ErrNotFound, "no recovery capsule")
	}
	return acct.capsule, nil
}

// Reset forgets everything attributed to id. Hearts id posted are not
// attributed and stay in the inbox, unverifiable.
func (s *State) Reset(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, id)
	for fp, c := range s.claims {
		if c.claimant == id {
			delete(s.claims, fp)
		}
	}
	for rid, r := range s.returns {
		if r.claimant == id {
			delete(s.returns, rid)
		}
	}
	for fp, m := range s.matches {
		if m.verifier == id || m.claimant == id {
			delete(s.matches, fp)
		}
	}
}

// Stats reports sizes for metrics.
func (s *State) Stats() (accounts, items, claims, matches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), len(s.items), len(s.claims), len(s.matches)
}

// view renders item for the caller; Late is relative to the caller's first commit.
func (s *State) view(acct *account, item *inboxRecord) domain.InboxItem {
	late := acct != nil && acct.slots.Committed() && item.arrivedAt.After(acct.slots.CommittedAt)
	return domain.InboxItem{
		ID:        item.id,
		Payload:   item.payload,
		SenderTag: item.tag,
		ArrivedAt: item.arrivedAt,
		Late:      late,
	}
}

func (s *State) checkReturn(id domain.Identity, r domain.ReturnEntry) error {
	if !validFingerprint(r.Fingerprint) || len(r.Payload) == 0 {
		return errors.Wrap(errBadRequest, "incomplete return entry")
	}
	c, ok := s.claims[r.Fingerprint]
	if !ok || c.claimant != id {
		return errors.Wrap(domain.ErrRejected, "return for a heart the caller has not claimed")
	}
	return nil
}

func (s *State) addReturns(id domain.Identity, entries []domain.ReturnEntry, now time.Time) {
	for _, r := range entries {
		rid := uuid.NewString()
		s.returns[rid] = &returnRecord{id: rid, entry: r, claimant: id, createdAt: now}
	}
}

// holds reports whether e is byte-identical to one of the stored entries.
func (a *account) holds(e *domain.SlotEntry) bool {
	for _, old := range a.slots.Entries {
		if sameEntry(old, e) {
			return true
		}
	}
	return false
}

func sameEntry(a, b *domain.SlotEntry) bool {
	return a != nil && b != nil &&
		bytes.Equal(a.SelfRecord, b.SelfRecord) && bytes.Equal(a.SelfSignature, b.SelfSignature)
}

func validFingerprint(fp domain.Fingerprint) bool {
	if len(fp) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(fp))
	return err == nil
}
