package match_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/relay"
	"heartx/internal/relayserver"
	"heartx/internal/relayserver/relaytest"
	"heartx/internal/services/directory"
	"heartx/internal/services/keyvault"
	"heartx/internal/services/match"
	"heartx/internal/services/slots"
)

type party struct {
	id     domain.Identity
	client *relay.HTTP
	sess   *keyvault.Session
	board  *slots.Board
	ledger *match.Ledger
	slots  *slots.Service
	match  *match.Service
}

func newParty(t *testing.T, r *relaytest.Relay, clk *relaytest.Clock, id domain.Identity) *party {
	t.Helper()
	sess, c := r.Register(t, id)
	dir := directory.New(c, nil, directory.Config{}, logging.Discard())
	p := &party{
		id:     id,
		client: c,
		sess:   sess,
		board:  slots.NewBoard(id),
		ledger: match.NewLedger(id),
		slots:  slots.New(c, dir, nil, slots.WithLogger(logging.Discard())),
		match:  match.New(c, nil, match.WithLogger(logging.Discard()), match.WithClock(clk.Now)),
	}
	require.NoError(t, p.slots.Sync(context.Background(), sess, p.board))
	return p
}

func (p *party) commitTo(t *testing.T, targets ...domain.Identity) {
	t.Helper()
	for _, target := range targets {
		_, err := p.slots.SaveDraft(p.board, target, "")
		require.NoError(t, err)
	}
	_, err := p.slots.Commit(context.Background(), p.sess, p.board)
	require.NoError(t, err)
}

func (p *party) claim(t *testing.T) match.Result {
	t.Helper()
	res, err := p.match.FetchAndClaim(context.Background(), p.sess, p.ledger)
	require.NoError(t, err)
	p.match.Acknowledge(p.ledger, res)
	return res
}

func (p *party) candidates(t *testing.T) []domain.VerifiedMatch {
	t.Helper()
	ms, err := p.match.FetchReturnCandidates(context.Background(), p.sess, p.board.Sent(), p.ledger)
	require.NoError(t, err)
	return ms
}

func world(t *testing.T) (*relaytest.Relay, *relaytest.Clock) {
	clk := relaytest.NewClock(time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC))
	return relaytest.New(t, relayserver.WithClock(clk.Now)), clk
}

// Both parties send a heart, but only the return step turns that into a match.
func TestMutualHeartsMatchOnlyThroughReturnStep(t *testing.T) {
	ctx := context.Background()
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")

	a.commitTo(t, "B2")
	clk.Advance(time.Minute)
	b.commitTo(t, "A1")
	clk.Advance(time.Minute)

	bRes := b.claim(t)
	require.Len(t, bRes.Ordinary, 1, "A1's heart predates B2's commit")
	assert.Empty(t, bRes.Late)

	aRes := a.claim(t)
	require.Len(t, aRes.Late, 1, "B2's heart arrived after A1 committed")
	assert.Empty(t, aRes.Ordinary)

	f1 := bRes.Ordinary[0].Fingerprint
	f2 := aRes.Late[0].Fingerprint
	assert.NotEqual(t, f1, f2)

	assert.Empty(t, a.candidates(t), "claims alone never match")
	assert.Empty(t, b.candidates(t))

	n, err := b.slots.Reciprocate(ctx, b.board, bRes.Fingerprints())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ms := a.candidates(t)
	require.Len(t, ms, 1)
	assert.Equal(t, f1, ms[0].Fingerprint)
	assert.Equal(t, domain.Identity("B2"), ms[0].Counterpart)
	assert.NotEmpty(t, ms[0].SharedSecret)
	assert.True(t, a.ledger.Verified(f1))
	assert.Empty(t, a.candidates(t), "a verified match is terminal")

	recs, err := b.match.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.Identity("A1"), recs[0].Counterpart)
}

func TestOneDirectionalHeartNeverMatches(t *testing.T) {
	ctx := context.Background()
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	c := newParty(t, r, clk, "C3")

	a.commitTo(t, "B2")
	c.commitTo(t, "A1")
	clk.Advance(time.Minute)

	res := a.claim(t)
	all := append(res.Ordinary, res.Late...)
	require.Len(t, all, 1)
	_, err := a.slots.Reciprocate(ctx, a.board, []domain.Fingerprint{all[0].Fingerprint})
	require.NoError(t, err)

	assert.Empty(t, b.candidates(t), "C3's fingerprint is not one of B2's hearts")
	assert.Empty(t, c.candidates(t))
	recs, err := c.match.ListMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCommitAttachesReturnsForEarlierClaims(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")

	a.commitTo(t, "B2")
	clk.Advance(time.Minute)
	require.Len(t, b.claim(t).Ordinary, 1)
	b.commitTo(t, "A1")

	ms := a.candidates(t)
	require.Len(t, ms, 1)
	assert.Equal(t, domain.Identity("B2"), ms[0].Counterpart)
}

func TestFetchAndClaim_IdempotentAndTallied(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	a.commitTo(t, "B2")
	clk.Advance(time.Minute)

	first := b.claim(t)
	require.Len(t, first.Ordinary, 1)
	assert.Empty(t, b.claim(t).Ordinary, "ledger skips already claimed items")

	fresh := match.NewLedger("B2")
	again, err := b.match.FetchAndClaim(context.Background(), b.sess, fresh)
	require.NoError(t, err)
	require.Len(t, again.Ordinary, 1)
	assert.Equal(t, first.Ordinary[0].ClaimedAt, again.Ordinary[0].ClaimedAt, "claiming twice is a no-op")
	assert.Empty(t, fresh.Tallies(), "nothing is recorded before acknowledgement")
	b.match.Acknowledge(fresh, again)
	assert.Equal(t, map[domain.SenderTag]int{"": 1}, fresh.Tallies())
}

func TestPoller_StopsOnClosedSession(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	a.commitTo(t, "B2")
	clk.Advance(time.Minute)

	var cycles []match.Cycle
	p := &match.Poller{
		Service:  b.match,
		Session:  b.sess,
		Ledger:   b.ledger,
		Sent:     b.board,
		Interval: 10 * time.Millisecond,
		OnCycle: func(c match.Cycle) {
			cycles = append(cycles, c)
			b.sess.Close()
		},
		Log: logging.Discard(),
	}
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0].Claimed.Ordinary, 1)
}

func TestPoller_ContextCancel(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")

	ctx, cancel := context.WithCancel(context.Background())
	p := &match.Poller{
		Service:  a.match,
		Session:  a.sess,
		Ledger:   a.ledger,
		Sent:     a.board,
		Interval: time.Hour,
		OnCycle:  func(match.Cycle) { cancel() },
	}
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestPoller_AfterClaimRetriesKeepClaims(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	a.commitTo(t, "B2")
	clk.Advance(time.Minute)

	var seen []int
	p := &match.Poller{
		Service:  b.match,
		Session:  b.sess,
		Ledger:   b.ledger,
		Sent:     b.board,
		MaxRetry: 5 * time.Second,
		AfterClaim: func(_ context.Context, res match.Result) error {
			seen = append(seen, len(res.Ordinary))
			if len(seen) == 1 {
				return domain.ErrNetworkFailure
			}
			return nil
		},
		Log: logging.Discard(),
	}
	c, err := p.Once(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, seen, "claims survive a failed hook")
	assert.Len(t, c.Claimed.Ordinary, 1)
}

// The relay's copy of a sender's slot set must not name the hearts that
// somebody claimed, otherwise it links sender and recipient.
func TestCommittedSlotsHoldNoClaimedFingerprint(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")

	a.commitTo(t, "B2")
	clk.Advance(time.Minute)
	res := b.claim(t)
	require.Len(t, res.Ordinary, 1)

	set, err := r.Server.State().Slots("A1")
	require.NoError(t, err)
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), string(res.Ordinary[0].Fingerprint))

	items, err := a.client.ListInbox(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1, "senders see their own hearts like anyone else")
	assert.Empty(t, a.claim(t).Ordinary, "own hearts do not open for the sender")
}

type memCursors struct {
	mu sync.Mutex
	at map[string]time.Time
}

func (m *memCursors) SaveCursor(name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.at == nil {
		m.at = make(map[string]time.Time)
	}
	m.at[name] = at
	return nil
}

func (m *memCursors) LoadCursor(name string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at[name], nil
}

func TestFetchAndClaim_CursorMovesOnlyOnAcknowledge(t *testing.T) {
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	cursors := &memCursors{}
	b.match = match.New(b.client, nil,
		match.WithLogger(logging.Discard()), match.WithClock(clk.Now), match.WithCursorStore(cursors))

	a.commitTo(t, "B2")
	clk.Advance(time.Hour)

	res, err := b.match.FetchAndClaim(context.Background(), b.sess, b.ledger)
	require.NoError(t, err)
	require.Len(t, res.Ordinary, 1)
	at, _ := cursors.LoadCursor("inbox")
	assert.True(t, at.IsZero(), "cursor untouched before acknowledgement")

	clk.Advance(time.Hour)
	again, err := b.match.FetchAndClaim(context.Background(), b.sess, b.ledger)
	require.NoError(t, err)
	require.Len(t, again.Ordinary, 1, "unacknowledged claims come back")

	b.match.Acknowledge(b.ledger, again)
	at, _ = cursors.LoadCursor("inbox")
	assert.Equal(t, clk.Now(), at)
	assert.Empty(t, b.claim(t).Ordinary)
}

// flakyInbox fails the nth Claim call once with a network error.
type flakyInbox struct {
	domain.InboxRelay
	failOn int

	mu    sync.Mutex
	calls int
}

func (f *flakyInbox) Claim(ctx context.Context, req domain.ClaimRequest) (domain.ClaimedHeart, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == f.failOn {
		return domain.ClaimedHeart{}, domain.ErrNetworkFailure
	}
	return f.InboxRelay.Claim(ctx, req)
}

// A claim that fails part way through a pass must not strand the claims
// that succeeded before it: they still reach the return step.
func TestPoller_PartialClaimFailureStillReturnsEveryHeart(t *testing.T) {
	ctx := context.Background()
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")
	c := newParty(t, r, clk, "C3")

	a.commitTo(t, "B2")
	clk.Advance(time.Minute)
	c.commitTo(t, "B2")
	clk.Advance(time.Minute)
	b.commitTo(t, "A1")
	clk.Advance(time.Minute)

	flaky := &flakyInbox{InboxRelay: b.client, failOn: 2}
	b.match = match.New(flaky, nil, match.WithLogger(logging.Discard()), match.WithClock(clk.Now))

	var returned int
	p := &match.Poller{
		Service:  b.match,
		Session:  b.sess,
		Ledger:   b.ledger,
		Sent:     b.board,
		MaxRetry: 5 * time.Second,
		AfterClaim: func(ctx context.Context, res match.Result) error {
			n, err := b.slots.Reciprocate(ctx, b.board, res.Fingerprints())
			returned += n
			return err
		},
		Log: logging.Discard(),
	}
	cyc, err := p.Once(ctx)
	require.NoError(t, err)
	assert.Len(t, cyc.Claimed.Ordinary, 2)
	assert.Equal(t, 2, returned, "both claims return toward A1")
	assert.Len(t, b.ledger.Claimed(), 2)

	ms := a.candidates(t)
	require.Len(t, ms, 1)
	assert.Equal(t, domain.Identity("B2"), ms[0].Counterpart)
}

// A second session starts with an empty ledger; matches the relay already
// recorded are remembered there but not reported as new.
func TestFetchReturnCandidates_FreshLedgerSkipsRecordedMatch(t *testing.T) {
	ctx := context.Background()
	r, clk := world(t)
	a := newParty(t, r, clk, "A1")
	b := newParty(t, r, clk, "B2")

	a.commitTo(t, "B2")
	clk.Advance(time.Minute)
	res := b.claim(t)
	b.commitTo(t, "A1")
	// A duplicate return keeps a candidate listed after the first verify.
	_, err := b.slots.Reciprocate(ctx, b.board, res.Fingerprints())
	require.NoError(t, err)

	require.Len(t, a.candidates(t), 1)

	fresh := match.NewLedger("A1")
	ms, err := a.match.FetchReturnCandidates(ctx, a.sess, a.board.Sent(), fresh)
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.True(t, fresh.Verified(res.Ordinary[0].Fingerprint))
}
