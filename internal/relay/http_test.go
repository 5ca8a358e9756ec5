package relay_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/domain"
	"heartx/internal/relay"
	"heartx/internal/relayserver"
)

func newRelay(t *testing.T, cfg relayserver.Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(relayserver.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func noLimit() relayserver.Config {
	cfg := relayserver.DefaultConfig()
	cfg.Rate = relayserver.RateConfig{}
	return cfg
}

func client(url string, id domain.Identity) *relay.HTTP {
	return relay.NewHTTP(url, nil, domain.Credentials{Identity: id, Token: "t"})
}

func TestHTTP_StatusMapping(t *testing.T) {
	ctx := context.Background()
	srv := newRelay(t, noLimit())
	alice := client(srv.URL, "alice")

	_, err := alice.FetchKeys(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	reg := domain.Registration{Identity: "alice", PublicKey: domain.X25519Public{9}, EncryptedPrivateKey: []byte("x")}
	require.NoError(t, alice.PublishKeys(ctx, reg))
	assert.ErrorIs(t, alice.PublishKeys(ctx, reg), domain.ErrConflict)

	got, err := alice.FetchKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg.PublicKey, got.PublicKey)

	dir, err := alice.FetchDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg.PublicKey, dir["alice"])

	_, err = alice.SubmitSlotSet(ctx, domain.SlotSetSubmission{ExpectedVersion: 3})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = client(srv.URL, "").FetchDirectory(ctx)
	assert.ErrorIs(t, err, domain.ErrAuthFailure)

	_, err = alice.VerifyMatch(ctx, domain.VerifyRequest{CandidatePayload: []byte("p"), Secret: "s"})
	assert.ErrorIs(t, err, domain.ErrRejected)

	_, err = alice.FetchRecoveryCapsule(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, alice.RegisterRecoveryCapsule(ctx, []byte("capsule")))
	capsule, err := alice.FetchRecoveryCapsule(ctx)
	require.NoError(t, err)
	assert.Equal(t, "capsule", string(capsule))
}

func TestHTTP_NetworkFailures(t *testing.T) {
	ctx := context.Background()

	cfg := relayserver.DefaultConfig()
	cfg.Rate = relayserver.RateConfig{RPS: 0.001, Burst: 1}
	srv := newRelay(t, cfg)
	c := client(srv.URL, "bob")
	_, err := c.FetchDirectory(ctx)
	require.NoError(t, err)
	_, err = c.FetchDirectory(ctx)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure, "429 is retryable")
	assert.True(t, domain.Retryable(err))

	dead := httptest.NewServer(nil)
	url := dead.URL
	dead.Close()
	_, err = client(url, "bob").ListInbox(ctx, testTime())
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestHTTP_ContextCancelled(t *testing.T) {
	srv := newRelay(t, noLimit())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client(srv.URL, "bob").ListReturnCandidates(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.Retryable(err))
}

func testTime() time.Time { return time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC) }
