package slots

import (
	"context"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/protocol/heart"
)

// MaxAuxLength bounds the per-heart note, in runes.
const MaxAuxLength = 280

var (
	// ErrInvalidTarget rejects self-targeting and duplicate targets.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidIndex is returned for a slot index outside 0..3.
	ErrInvalidIndex = errors.New("slot index out of range")
	// ErrSlotCommitted refuses draft edits to a committed slot; withdraw it first.
	ErrSlotCommitted = errors.New("slot is committed")
	// ErrSlotEmpty is returned when withdrawing an empty slot.
	ErrSlotEmpty = errors.New("slot is empty")
	// ErrNothingToCommit is returned when the board has no drafts.
	ErrNothingToCommit = errors.New("no drafts to commit")
	// ErrAuxTooLong rejects oversized notes.
	ErrAuxTooLong = errors.New("note is too long")
	// ErrWrongSession is returned when the session does not own the board.
	ErrWrongSession = errors.New("session does not own this board")
)

// Relay is the slice of the relay API the slot service uses.
type Relay interface {
	domain.SlotRelay
	SubmitReturns(ctx context.Context, entries []domain.ReturnEntry) error
}

// Directory resolves target public keys.
type Directory interface {
	Get(ctx context.Context, id domain.Identity) (domain.X25519Public, error)
	Forget(id domain.Identity)
}

// Service drafts, commits and withdraws slot selections.
type Service struct {
	relay  Relay
	dir    Directory
	codec  *heart.Codec
	drafts domain.DraftStore
	aux    domain.AuxStore
	late   domain.LateStore
	tag    domain.SenderTag
	log    log.FieldLogger
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithDraftStore persists drafts between runs.
func WithDraftStore(st domain.DraftStore) Option { return func(s *Service) { s.drafts = st } }

// WithAuxStore persists per-counterpart notes.
func WithAuxStore(st domain.AuxStore) Option { return func(s *Service) { s.aux = st } }

// WithLateStore lets commits include returns for accepted late hearts.
func WithLateStore(st domain.LateStore) Option { return func(s *Service) { s.late = st } }

// WithSenderTag sets the coarse tag attached to every submission.
func WithSenderTag(tag domain.SenderTag) Option { return func(s *Service) { s.tag = tag } }

// New returns a slot service.
func New(relay Relay, dir Directory, codec *heart.Codec, opts ...Option) *Service {
	s := &Service{relay: relay, dir: dir, codec: codec}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = heart.New(nil)
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	return s
}

// SaveDraft places target in the first free slot.
func (s *Service) SaveDraft(b *Board, target domain.Identity, aux string) (domain.Slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := validate(b, target, aux, -1); err != nil {
		return domain.Slot{}, err
	}
	free, ok := lo.Find(b.slots[:], func(sl domain.Slot) bool { return !sl.Occupied() })
	if !ok {
		return domain.Slot{}, domain.ErrCapacityExceeded
	}
	b.slots[free.Index] = domain.Slot{Index: free.Index, Target: target, State: domain.SlotDraft, Aux: aux}
	s.persistDrafts(b)
	return b.slots[free.Index], nil
}

// SaveDraftAt puts target in slot index, replacing any draft there.
func (s *Service) SaveDraftAt(b *Board, index int, target domain.Identity, aux string) (domain.Slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= domain.SlotCount {
		return domain.Slot{}, ErrInvalidIndex
	}
	if b.slots[index].State == domain.SlotCommitted {
		return domain.Slot{}, ErrSlotCommitted
	}
	if err := validate(b, target, aux, index); err != nil {
		return domain.Slot{}, err
	}
	b.slots[index] = domain.Slot{Index: index, Target: target, State: domain.SlotDraft, Aux: aux}
	s.persistDrafts(b)
	return b.slots[index], nil
}

// ClearDraft empties a draft slot.
func (s *Service) ClearDraft(b *Board, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= domain.SlotCount {
		return ErrInvalidIndex
	}
	if b.slots[index].State == domain.SlotCommitted {
		return ErrSlotCommitted
	}
	b.slots[index] = domain.Slot{Index: index}
	s.persistDrafts(b)
	return nil
}

// Commit submits every draft together with the already committed slots.
//
// The board changes only after the relay acknowledges the new set.
func (s *Service) Commit(ctx context.Context, sess domain.Session, b *Board) (domain.SlotSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.draftsLocked()) == 0 {
		return domain.SlotSet{}, ErrNothingToCommit
	}
	next := b.slots
	for i := range next {
		if next[i].State == domain.SlotDraft {
			next[i].State = domain.SlotCommitted
		}
	}
	return s.submit(ctx, sess, b, next)
}

// Withdraw removes a target. A committed slot is withdrawn on the relay; a
// draft is just cleared.
func (s *Service) Withdraw(ctx context.Context, sess domain.Session, b *Board, index int) (domain.SlotSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= domain.SlotCount {
		return domain.SlotSet{}, ErrInvalidIndex
	}
	switch b.slots[index].State {
	case domain.SlotEmpty:
		return domain.SlotSet{}, ErrSlotEmpty
	case domain.SlotDraft:
		b.slots[index] = domain.Slot{Index: index}
		s.persistDrafts(b)
		return b.sent, nil
	}
	next := b.slots
	next[index] = domain.Slot{Index: index}
	return s.submit(ctx, sess, b, next)
}

// Sync reloads the board from the relay and overlays local drafts on free slots.
func (s *Service) Sync(ctx context.Context, sess domain.Session, b *Board) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sess.Identity() != b.owner {
		return ErrWrongSession
	}
	set, err := s.relay.FetchSlotSet(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch slot set")
	}
	kp, err := sess.KeyPair()
	if err != nil {
		return err
	}
	defer crypto.Wipe(kp.Private[:])

	notes := s.loadAux()
	var next [domain.SlotCount]domain.Slot
	for i, e := range set.Entries {
		next[i].Index = i
		if e == nil {
			continue
		}
		secret, err := s.codec.OpenSelfRecord(*e, kp)
		if err != nil {
			return errors.Wrapf(err, "open slot %d", i)
		}
		who, err := heart.Counterpart(secret, b.owner)
		if err != nil {
			return errors.Wrapf(err, "slot %d counterpart", i)
		}
		next[i] = domain.Slot{Index: i, Target: who, State: domain.SlotCommitted, Aux: notes[who]}
	}

	if s.drafts != nil {
		drafts, err := s.drafts.LoadDrafts()
		if err != nil {
			s.log.WithError(err).Warn("drafts unreadable")
		}
		for _, d := range drafts {
			taken := lo.ContainsBy(next[:], func(sl domain.Slot) bool { return sl.Target == d.Target })
			if d.Index < 0 || d.Index >= domain.SlotCount || next[d.Index].Occupied() || taken ||
				d.Target == "" || d.Target == b.owner {
				continue
			}
			next[d.Index] = domain.Slot{Index: d.Index, Target: d.Target, State: domain.SlotDraft, Aux: d.Aux}
		}
	}

	b.sent = set
	b.slots = next
	return nil
}

// BuildReturns re-encrypts each claimed fingerprint toward every target.
func (s *Service) BuildReturns(
	ctx context.Context,
	fps []domain.Fingerprint,
	targets []domain.Slot,
) ([]domain.ReturnEntry, error) {
	out := make([]domain.ReturnEntry, 0, len(fps)*len(targets))
	for _, t := range targets {
		if len(fps) == 0 {
			break
		}
		pub, err := s.dir.Get(ctx, t.Target)
		if err != nil {
			return nil, errors.Wrapf(err, "key for %s", t.Target)
		}
		for _, fp := range fps {
			r, err := s.codec.ReturnFor(fp, pub, t.Aux)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// Reciprocate sends returns for newly claimed fingerprints toward every
// committed target. Before the first commit it does nothing; Commit attaches
// returns for all claims itself.
func (s *Service) Reciprocate(ctx context.Context, b *Board, fps []domain.Fingerprint) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	targets := b.committedLocked()
	if len(fps) == 0 || len(targets) == 0 {
		return 0, nil
	}
	returns, err := s.BuildReturns(ctx, lo.Uniq(fps), targets)
	if err != nil {
		return 0, err
	}
	if err := s.relay.SubmitReturns(ctx, returns); err != nil {
		return 0, errors.Wrap(err, "submit returns")
	}
	s.log.WithField("returns", len(returns)).Debug("returns submitted")
	return len(returns), nil
}

// submit sends the slot set described by next. Caller holds b.mu.
func (s *Service) submit(
	ctx context.Context,
	sess domain.Session,
	b *Board,
	next [domain.SlotCount]domain.Slot,
) (domain.SlotSet, error) {
	if sess.Identity() != b.owner {
		return domain.SlotSet{}, ErrWrongSession
	}
	kp, err := sess.KeyPair()
	if err != nil {
		return domain.SlotSet{}, err
	}
	defer crypto.Wipe(kp.Private[:])

	var (
		entries [domain.SlotCount]*domain.SlotEntry
		hearts  []domain.OutboundHeart
	)
	for i, sl := range next {
		if sl.State != domain.SlotCommitted {
			continue
		}
		if prev := b.slots[i]; prev.State == domain.SlotCommitted && prev.Target == sl.Target && b.sent.Entries[i] != nil {
			entries[i] = b.sent.Entries[i]
			continue
		}
		e, h, err := s.buildEntry(ctx, b.owner, kp, sl.Target)
		if err != nil {
			return domain.SlotSet{}, err
		}
		entries[i] = e
		hearts = append(hearts, *h)
	}

	targets := lo.Filter(next[:], func(sl domain.Slot, _ int) bool { return sl.State == domain.SlotCommitted })
	returns, err := s.commitReturns(ctx, targets)
	if err != nil {
		return domain.SlotSet{}, err
	}

	set, err := s.relay.SubmitSlotSet(ctx, domain.SlotSetSubmission{
		ExpectedVersion: b.sent.Version,
		SenderTag:       s.tag,
		Entries:         entries,
		Hearts:          hearts,
		Returns:         returns,
	})
	if err != nil {
		return domain.SlotSet{}, errors.Wrap(err, "submit slot set")
	}

	b.sent = set
	b.slots = next
	s.persistDrafts(b)
	for _, t := range targets {
		if s.aux != nil && t.Aux != "" {
			if err := s.aux.SaveAux(t.Target, t.Aux); err != nil {
				s.log.WithError(err).Warn("note not saved")
			}
		}
	}
	s.log.WithFields(log.Fields{
		"version":   set.Version,
		"committed": len(targets),
		"returns":   len(returns),
	}).Info("slot set committed")
	return set, nil
}

// buildEntry builds one heart, refreshing the target's key once if it was missing.
func (s *Service) buildEntry(
	ctx context.Context,
	owner domain.Identity,
	kp domain.KeyPair,
	target domain.Identity,
) (*domain.SlotEntry, *domain.OutboundHeart, error) {
	for attempt := 0; ; attempt++ {
		pub, err := s.dir.Get(ctx, target)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "key for %s", target)
		}
		e, h, err := s.codec.BuildEntry(owner, kp, target, pub)
		if errors.Is(err, domain.ErrNeedsKeyFetch) && attempt == 0 {
			s.dir.Forget(target)
			continue
		}
		return e, h, err
	}
}

// commitReturns covers every on-time claim plus the late ones the user accepted.
func (s *Service) commitReturns(ctx context.Context, targets []domain.Slot) ([]domain.ReturnEntry, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	claims, err := s.relay.ListClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list claims")
	}
	var lateItems map[string]domain.LateItem
	if s.late != nil {
		if lateItems, err = s.late.LoadLateItems(); err != nil {
			s.log.WithError(err).Warn("late items unreadable")
		}
	}
	eligible := lo.Filter(claims, func(c domain.ClaimedHeart, _ int) bool {
		if !c.Late {
			return true
		}
		it, ok := lateItems[c.ID]
		return ok && it.State == domain.LateAccepted
	})
	fps := lo.Uniq(lo.Map(eligible, func(c domain.ClaimedHeart, _ int) domain.Fingerprint {
		return c.Fingerprint
	}))
	return s.BuildReturns(ctx, fps, targets)
}

func (s *Service) persistDrafts(b *Board) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.SaveDrafts(b.draftsLocked()); err != nil {
		s.log.WithError(err).Warn("drafts not saved")
	}
}

func (s *Service) loadAux() map[domain.Identity]string {
	if s.aux == nil {
		return nil
	}
	notes, err := s.aux.LoadAux()
	if err != nil {
		s.log.WithError(err).Warn("notes unreadable")
	}
	return notes
}

// validate checks target against the owner and every other occupied slot.
func validate(b *Board, target domain.Identity, aux string, skip int) error {
	if target == "" || target == b.owner {
		return ErrInvalidTarget
	}
	if utf8.RuneCountInString(aux) > MaxAuxLength {
		return ErrAuxTooLong
	}
	for _, sl := range b.slots {
		if sl.Index != skip && sl.Occupied() && sl.Target == target {
			return errors.Wrapf(ErrInvalidTarget, "%s is already in slot %d", target, sl.Index)
		}
	}
	return nil
}
