package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/protocol/heart"
	"heartx/internal/relayserver/relaytest"
	"heartx/internal/services/keyvault"
	"heartx/internal/services/match"
	"heartx/internal/worker"
)

type recoverFunc func(ctx context.Context, code string) (string, error)

func (f recoverFunc) Recover(ctx context.Context, code string) (string, error) { return f(ctx, code) }

func start(t *testing.T, w *worker.Worker) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return ctx
}

func TestWorker_GenerateAndBuild(t *testing.T) {
	r := relaytest.New(t)
	sess, _ := r.Register(t, "alice")
	bob, _ := r.Register(t, "bob")

	vault := keyvault.New(nil, keyvault.WithLogger(logging.Discard()))
	codec := heart.New(nil)
	w := worker.New(vault, codec, nil, nil, logging.Discard())
	ctx := start(t, w)

	kp, err := w.GenerateKeyPair(ctx)
	require.NoError(t, err)
	assert.False(t, kp.Public.IsZero())

	entry, out, err := w.BuildEntry(ctx, sess, "bob", bob.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NotNil(t, out)

	bobKP, err := bob.KeyPair()
	require.NoError(t, err)
	fp, err := codec.DecryptInbox(domain.InboxItem{Payload: out.Payload}, bobKP)
	require.NoError(t, err)
	assert.Equal(t, out.Fingerprint, fp)

	_, _, err = w.BuildEntry(ctx, sess, "bob", domain.X25519Public{})
	assert.ErrorIs(t, err, domain.ErrNeedsKeyFetch)
}

func TestWorker_ClaimAllAndRecover(t *testing.T) {
	r := relaytest.New(t)
	sess, c := r.Register(t, "alice")

	matcher := match.New(c, nil, match.WithLogger(logging.Discard()))
	rec := recoverFunc(func(_ context.Context, code string) (string, error) {
		if code != "good" {
			return "", domain.ErrAuthFailure
		}
		return "pw", nil
	})
	w := worker.New(nil, nil, matcher, rec, logging.Discard())
	ctx := start(t, w)

	l := match.NewLedger("alice")
	res, err := w.FetchAndClaim(ctx, sess, l)
	require.NoError(t, err)
	assert.Empty(t, res.Ordinary)
	assert.False(t, res.FetchedAt.IsZero())
	w.Acknowledge(l, res)
	assert.Empty(t, l.Claimed())

	ms, err := w.FetchReturnCandidates(ctx, sess, domain.SlotSet{}, match.NewLedger("alice"))
	require.NoError(t, err)
	assert.Empty(t, ms)

	pw, err := w.Recover(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
	_, err = w.Recover(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrAuthFailure)

	resp := w.Do(ctx, worker.Request{Kind: worker.GenerateKeys})
	assert.Error(t, resp.Err, "no key generator configured")
	assert.Equal(t, worker.GenerateKeys, resp.Kind)
}

func TestWorker_StoppedAndCancelled(t *testing.T) {
	w := worker.New(nil, nil, nil, nil, logging.Discard())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.GenerateKeyPair(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	_, err = w.Recover(context.Background(), "x")
	assert.ErrorIs(t, err, worker.ErrStopped)
}
