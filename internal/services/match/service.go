package match

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/protocol/heart"
)

const (
	inboxCursor = "inbox"
	// cursorOverlap re-reads the tail of the previous window to tolerate clock skew.
	cursorOverlap = time.Minute
)

// Result partitions freshly claimed hearts. Nothing in it is recorded in the
// ledger until it is passed to Acknowledge.
type Result struct {
	Ordinary []domain.ClaimedHeart
	Late     []domain.ClaimedHeart
	// FetchedAt is the inbox window end the cursor moves to on Acknowledge.
	FetchedAt time.Time
}

// Fingerprints returns the fingerprints of the ordinary claims.
func (r Result) Fingerprints() []domain.Fingerprint {
	return lo.Map(r.Ordinary, func(c domain.ClaimedHeart, _ int) domain.Fingerprint { return c.Fingerprint })
}

// Service claims inbound hearts and verifies mutual matches.
type Service struct {
	relay   domain.InboxRelay
	codec   *heart.Codec
	cursors domain.CursorStore
	log     log.FieldLogger
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithCursorStore persists the inbox poll position.
func WithCursorStore(st domain.CursorStore) Option { return func(s *Service) { s.cursors = st } }

// WithClock sets the clock used for poll cursors.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New returns a match service.
func New(relay domain.InboxRelay, codec *heart.Codec, opts ...Option) *Service {
	s := &Service{relay: relay, codec: codec, now: time.Now}
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

// FetchAndClaim lists new inbox items, claims those addressed to sess and
// returns them split into ordinary and late hearts. Claims are idempotent on
// the relay, so items that were claimed but never acknowledged are claimed
// and returned again on the next call.
func (s *Service) FetchAndClaim(ctx context.Context, sess domain.Session, l *Ledger) (Result, error) {
	kp, err := sess.KeyPair()
	if err != nil {
		return Result{}, err
	}
	defer crypto.Wipe(kp.Private[:])

	started := s.now()
	items, err := s.relay.ListInbox(ctx, s.since(l))
	if err != nil {
		return Result{}, errors.Wrap(err, "list inbox")
	}

	res := Result{FetchedAt: started}
	for _, item := range items {
		if l.hasClaimed(item.ID) {
			continue
		}
		fp, err := s.codec.DecryptInbox(item, kp)
		if err != nil {
			continue
		}
		claim, err := s.relay.Claim(ctx, domain.ClaimRequest{
			Payload:     item.Payload,
			Fingerprint: fp,
			SenderTag:   item.SenderTag,
		})
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRejected):
			s.log.WithError(err).WithField("item", item.ID).Debug("claim skipped")
			continue
		case err != nil:
			return res, errors.Wrap(err, "claim")
		}
		if claim.Late {
			res.Late = append(res.Late, claim)
		} else {
			res.Ordinary = append(res.Ordinary, claim)
		}
	}

	if n := len(res.Ordinary) + len(res.Late); n > 0 {
		s.log.WithFields(log.Fields{"ordinary": len(res.Ordinary), "late": len(res.Late)}).Info("claimed hearts")
	}
	return res, nil
}

// Acknowledge records the claims in res and advances the inbox cursor. Call
// it once the claims have been handed on, never before.
func (s *Service) Acknowledge(l *Ledger, res Result) {
	for _, c := range res.Ordinary {
		l.addClaim(c)
	}
	for _, c := range res.Late {
		l.addClaim(c)
	}
	if res.FetchedAt.IsZero() || !res.FetchedAt.After(l.cursor()) {
		return
	}
	l.setCursor(res.FetchedAt)
	if s.cursors != nil {
		if err := s.cursors.SaveCursor(inboxCursor, res.FetchedAt); err != nil {
			s.log.WithError(err).Warn("cursor not saved")
		}
	}
}

// FetchReturnCandidates checks every return candidate against the sent slot
// set and verifies each one that closes a loop.
func (s *Service) FetchReturnCandidates(
	ctx context.Context,
	sess domain.Session,
	sent domain.SlotSet,
	l *Ledger,
) ([]domain.VerifiedMatch, error) {
	cands, err := s.relay.ListReturnCandidates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list return candidates")
	}
	if len(cands) == 0 {
		return nil, nil
	}
	kp, err := sess.KeyPair()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(kp.Private[:])

	var own [domain.SlotCount]domain.Fingerprint
	for i, e := range sent.Entries {
		if e == nil {
			continue
		}
		fp, err := s.codec.OpenSelfSignature(*e, kp)
		if err != nil {
			s.log.WithField("slot", i).Warn("self signature does not open")
			continue
		}
		own[i] = fp
	}

	var out []domain.VerifiedMatch
	for _, cand := range cands {
		cfp, err := s.codec.DecryptReturn(cand, kp)
		if err != nil || l.Verified(cfp) {
			continue
		}
		for i, fp := range own {
			if fp == "" || fp != cfp {
				continue
			}
			m, known, err := s.verify(ctx, sess.Identity(), kp, *sent.Entries[i], cand, cfp)
			if err != nil {
				return out, err
			}
			if m != nil {
				// A match the relay already recorded is remembered but not
				// reported again.
				l.addMatch(*m)
				if !known {
					out = append(out, *m)
				}
			}
			break
		}
	}
	return out, nil
}

// ListMatches returns the relay's view of matches involving sess.
func (s *Service) ListMatches(ctx context.Context) ([]domain.MatchRecord, error) {
	ms, err := s.relay.ListMatches(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list matches")
	}
	return ms, nil
}

func (s *Service) verify(
	ctx context.Context,
	self domain.Identity,
	kp domain.KeyPair,
	entry domain.SlotEntry,
	cand domain.ReturnCandidate,
	fp domain.Fingerprint,
) (*domain.VerifiedMatch, bool, error) {
	secret, err := s.codec.OpenSelfRecord(entry, kp)
	if err != nil || crypto.Fingerprint(secret) != fp {
		s.log.Warn("self record does not match its fingerprint")
		return nil, false, nil
	}
	who, err := heart.Counterpart(secret, self)
	if err != nil {
		return nil, false, nil
	}
	res, err := s.relay.VerifyMatch(ctx, domain.VerifyRequest{CandidatePayload: cand.Payload, Secret: secret})
	if errors.Is(err, domain.ErrRejected) {
		s.log.WithError(err).Debug("relay refused match")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "verify match")
	}
	s.log.WithFields(log.Fields{
		"counterpart":     who,
		"already_matched": res.AlreadyMatched,
	}).Info("verified match")
	m := &domain.VerifiedMatch{Fingerprint: fp, SharedSecret: secret, Counterpart: who, Aux: cand.Aux}
	return m, res.AlreadyMatched, nil
}

// since is the inbox window start: last fetch minus the overlap, or zero on first run.
func (s *Service) since(l *Ledger) time.Time {
	last := l.cursor()
	if last.IsZero() && s.cursors != nil {
		at, err := s.cursors.LoadCursor(inboxCursor)
		if err != nil {
			s.log.WithError(err).Warn("cursor unreadable")
		}
		last = at
	}
	if last.IsZero() {
		return time.Time{}
	}
	return last.Add(-cursorOverlap)
}
