package match

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"heartx/internal/domain"
)

// Matcher runs the two halves of a pass. Service and worker.Worker both satisfy it.
type Matcher interface {
	FetchAndClaim(ctx context.Context, sess domain.Session, l *Ledger) (Result, error)
	Acknowledge(l *Ledger, res Result)
	FetchReturnCandidates(
		ctx context.Context,
		sess domain.Session,
		sent domain.SlotSet,
		l *Ledger,
	) ([]domain.VerifiedMatch, error)
}

// SentSource yields the current acknowledged slot set.
type SentSource interface {
	Sent() domain.SlotSet
}

// Cycle is the outcome of one claim and verify pass.
type Cycle struct {
	Claimed Result
	Matches []domain.VerifiedMatch
}

// Poller repeats claim and verify passes on an interval.
type Poller struct {
	Service  Matcher
	Session  domain.Session
	Ledger   *Ledger
	Sent     SentSource
	Interval time.Duration
	// MaxRetry bounds how long one pass keeps retrying network failures.
	MaxRetry time.Duration
	// AfterClaim, if set, runs between claiming and verifying. Claims are
	// acknowledged only once it returns nil.
	AfterClaim func(ctx context.Context, r Result) error
	// OnCycle, if set, receives every completed pass.
	OnCycle func(Cycle)
	Log     log.FieldLogger
}

// Run polls until ctx ends or a non-retryable error occurs.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := p.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c, err := p.Once(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && domain.Retryable(err):
			logger.WithError(err).Warn("poll failed, will retry next interval")
		case err != nil:
			return err
		case p.OnCycle != nil:
			p.OnCycle(c)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Once runs a single pass, retrying network failures with exponential backoff.
func (p *Poller) Once(ctx context.Context) (Cycle, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = p.MaxRetry
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = time.Minute
	}

	op := func() (Cycle, error) {
		var c Cycle
		res, err := p.Service.FetchAndClaim(ctx, p.Session, p.Ledger)
		if err != nil {
			return c, classify(err)
		}
		c.Claimed = res
		if p.AfterClaim != nil {
			if err := p.AfterClaim(ctx, res); err != nil {
				return c, classify(err)
			}
		}
		p.Service.Acknowledge(p.Ledger, res)
		ms, err := p.Service.FetchReturnCandidates(ctx, p.Session, p.Sent.Sent(), p.Ledger)
		if err != nil {
			return c, classify(err)
		}
		c.Matches = ms
		return c, nil
	}
	return backoff.RetryWithData(op, backoff.WithContext(b, ctx))
}

// classify marks everything except network failures as permanent.
func classify(err error) error {
	if domain.Retryable(err) {
		return err
	}
	return backoff.Permanent(err)
}
