// Package worker runs CPU-bound crypto and the claim and verify passes on a
// single goroutine, fed by a typed request channel.
package worker

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/protocol/heart"
	"heartx/internal/services/match"
)

// Kind names a request variant.
type Kind int

const (
	GenerateKeys Kind = iota + 1
	BuildHeart
	ClaimAll
	FetchReturns
	Recover
)

func (k Kind) String() string {
	switch k {
	case GenerateKeys:
		return "generate_keys"
	case BuildHeart:
		return "build_heart"
	case ClaimAll:
		return "claim_all"
	case FetchReturns:
		return "fetch_returns"
	case Recover:
		return "recover"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrStopped is returned for requests submitted after Run has returned.
var ErrStopped = errors.New("worker stopped")

// Request is one unit of work. Only the fields of its Kind are read.
type Request struct {
	Kind Kind

	Session domain.Session
	Ledger  *match.Ledger

	// BuildHeart
	Target    domain.Identity
	TargetPub domain.X25519Public
	// FetchReturns
	Sent domain.SlotSet
	// Recover
	Code string
}

// Response carries the typed result of a Request.
type Response struct {
	Kind Kind
	Err  error

	Keys     domain.KeyPair
	Entry    *domain.SlotEntry
	Heart    *domain.OutboundHeart
	Claimed  match.Result
	Matches  []domain.VerifiedMatch
	Password string
}

// KeyGenerator creates key pairs.
type KeyGenerator interface {
	GenerateKeyPair() (domain.KeyPair, error)
}

// Recoverer opens recovery capsules.
type Recoverer interface {
	Recover(ctx context.Context, code string) (string, error)
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Worker owns the request channel and the services it dispatches to.
type Worker struct {
	keys     KeyGenerator
	codec    *heart.Codec
	matcher  *match.Service
	recovery Recoverer
	log      log.FieldLogger

	jobs chan job
	done chan struct{}
}

// New returns a worker; call Run to start it. Nil services make their kinds fail.
func New(keys KeyGenerator, codec *heart.Codec, matcher *match.Service, rec Recoverer, l log.FieldLogger) *Worker {
	if l == nil {
		l = log.StandardLogger()
	}
	if codec == nil {
		codec = heart.New(nil)
	}
	return &Worker{
		keys:     keys,
		codec:    codec,
		matcher:  matcher,
		recovery: rec,
		log:      l,
		jobs:     make(chan job),
		done:     make(chan struct{}),
	}
}

// Run processes requests one at a time until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-w.jobs:
			resp := w.handle(j.ctx, j.req)
			resp.Kind = j.req.Kind
			j.reply <- resp
		}
	}
}

// Do submits req and waits for its response.
func (w *Worker) Do(ctx context.Context, req Request) Response {
	j := job{ctx: ctx, req: req, reply: make(chan Response, 1)}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return Response{Kind: req.Kind, Err: ctx.Err()}
	case <-w.done:
		return Response{Kind: req.Kind, Err: ErrStopped}
	}
	select {
	case resp := <-j.reply:
		return resp
	case <-ctx.Done():
		return Response{Kind: req.Kind, Err: ctx.Err()}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) (resp Response) {
	if err := ctx.Err(); err != nil {
		return Response{Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("kind", req.Kind).Error("worker request panicked")
			resp = Response{Err: errors.Errorf("%s: internal error", req.Kind)}
		}
	}()

	switch req.Kind {
	case GenerateKeys:
		if w.keys == nil {
			return Response{Err: errors.Errorf("%s: not configured", req.Kind)}
		}
		resp.Keys, resp.Err = w.keys.GenerateKeyPair()
	case BuildHeart:
		resp.Entry, resp.Heart, resp.Err = w.buildHeart(req)
	case ClaimAll:
		if w.matcher == nil {
			return Response{Err: errors.Errorf("%s: not configured", req.Kind)}
		}
		resp.Claimed, resp.Err = w.matcher.FetchAndClaim(ctx, req.Session, req.Ledger)
	case FetchReturns:
		if w.matcher == nil {
			return Response{Err: errors.Errorf("%s: not configured", req.Kind)}
		}
		resp.Matches, resp.Err = w.matcher.FetchReturnCandidates(ctx, req.Session, req.Sent, req.Ledger)
	case Recover:
		if w.recovery == nil {
			return Response{Err: errors.Errorf("%s: not configured", req.Kind)}
		}
		resp.Password, resp.Err = w.recovery.Recover(ctx, req.Code)
	default:
		resp.Err = errors.Errorf("unknown request %s", req.Kind)
	}
	if resp.Err != nil {
		w.log.WithError(resp.Err).WithField("kind", req.Kind).Debug("request failed")
	}
	return resp
}

func (w *Worker) buildHeart(req Request) (*domain.SlotEntry, *domain.OutboundHeart, error) {
	if req.Session == nil {
		return nil, nil, errors.New("build heart: no session")
	}
	kp, err := req.Session.KeyPair()
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Wipe(kp.Private[:])
	return w.codec.BuildEntry(req.Session.Identity(), kp, req.Target, req.TargetPub)
}

// GenerateKeyPair runs a GenerateKeys request.
func (w *Worker) GenerateKeyPair(ctx context.Context) (domain.KeyPair, error) {
	resp := w.Do(ctx, Request{Kind: GenerateKeys})
	return resp.Keys, resp.Err
}

// BuildEntry runs a BuildHeart request.
func (w *Worker) BuildEntry(
	ctx context.Context,
	sess domain.Session,
	target domain.Identity,
	targetPub domain.X25519Public,
) (*domain.SlotEntry, *domain.OutboundHeart, error) {
	resp := w.Do(ctx, Request{Kind: BuildHeart, Session: sess, Target: target, TargetPub: targetPub})
	return resp.Entry, resp.Heart, resp.Err
}

// FetchAndClaim runs a ClaimAll request.
func (w *Worker) FetchAndClaim(ctx context.Context, sess domain.Session, l *match.Ledger) (match.Result, error) {
	resp := w.Do(ctx, Request{Kind: ClaimAll, Session: sess, Ledger: l})
	return resp.Claimed, resp.Err
}

// Acknowledge records claims in the ledger. It touches no key material so it
// runs on the caller's goroutine.
func (w *Worker) Acknowledge(l *match.Ledger, res match.Result) {
	if w.matcher != nil {
		w.matcher.Acknowledge(l, res)
	}
}

// FetchReturnCandidates runs a FetchReturns request.
func (w *Worker) FetchReturnCandidates(
	ctx context.Context,
	sess domain.Session,
	sent domain.SlotSet,
	l *match.Ledger,
) ([]domain.VerifiedMatch, error) {
	resp := w.Do(ctx, Request{Kind: FetchReturns, Session: sess, Sent: sent, Ledger: l})
	return resp.Matches, resp.Err
}

// Recover runs a Recover request.
func (w *Worker) Recover(ctx context.Context, code string) (string, error) {
	resp := w.Do(ctx, Request{Kind: Recover, Code: code})
	return resp.Password, resp.Err
}
