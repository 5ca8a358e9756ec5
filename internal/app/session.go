package app

import (
	"context"

	"github.com/pkg/errors"

	"heartx/internal/services/keyvault"
	"heartx/internal/services/match"
	"heartx/internal/services/slots"
)

// Session is the per-login state: the unlocked key, the slot board and the
// match ledger. Close it to drop the key.
type Session struct {
	Keys   *keyvault.Session
	Board  *slots.Board
	Ledger *match.Ledger
}

// Close destroys the unlocked key.
func (s *Session) Close() { s.Keys.Close() }

// Register creates the identity on the relay and opens a session.
func (w *Wire) Register(ctx context.Context, password string) (*Session, error) {
	ks, err := w.Keys.Register(ctx, w.Config.Identity, password)
	if err != nil {
		return nil, err
	}
	return w.open(ctx, ks)
}

// Login unlocks the identity and loads its board.
func (w *Wire) Login(ctx context.Context, password string) (*Session, error) {
	ks, err := w.Keys.Login(ctx, w.Config.Identity, password)
	if err != nil {
		return nil, err
	}
	return w.open(ctx, ks)
}

func (w *Wire) open(ctx context.Context, ks *keyvault.Session) (*Session, error) {
	s := &Session{
		Keys:   ks,
		Board:  slots.NewBoard(ks.Identity()),
		Ledger: match.NewLedger(ks.Identity()),
	}
	if err := w.Slots.Sync(ctx, ks, s.Board); err != nil {
		ks.Close()
		return nil, errors.Wrap(err, "load slots")
	}
	return s, nil
}

// AfterClaim tracks late claims and sends returns for ordinary ones.
func (w *Wire) AfterClaim(s *Session) func(ctx context.Context, res match.Result) error {
	return func(ctx context.Context, res match.Result) error {
		if len(res.Late) > 0 {
			if _, err := w.Late.Track(res.Late); err != nil {
				return errors.Wrap(err, "track late hearts")
			}
		}
		_, err := w.Slots.Reciprocate(ctx, s.Board, res.Fingerprints())
		return err
	}
}

// Cycle runs one claim, return and verify pass on the worker.
func (w *Wire) Cycle(ctx context.Context, s *Session) (match.Cycle, error) {
	var c match.Cycle
	res, err := w.Worker.FetchAndClaim(ctx, s.Keys, s.Ledger)
	if err != nil {
		return c, err
	}
	c.Claimed = res
	if err := w.AfterClaim(s)(ctx, res); err != nil {
		return c, err
	}
	w.Worker.Acknowledge(s.Ledger, res)
	c.Matches, err = w.Worker.FetchReturnCandidates(ctx, s.Keys, s.Board.Sent(), s.Ledger)
	return c, err
}

// Poller returns a poller that runs passes on the worker every poll.interval.
func (w *Wire) Poller(s *Session, onCycle func(match.Cycle)) *match.Poller {
	return &match.Poller{
		Service:    w.Worker,
		Session:    s.Keys,
		Ledger:     s.Ledger,
		Sent:       s.Board,
		Interval:   w.Config.Poll.Interval,
		AfterClaim: w.AfterClaim(s),
		OnCycle:    onCycle,
		Log:        w.Log,
	}
}
