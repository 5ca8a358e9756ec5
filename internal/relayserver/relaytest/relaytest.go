// Package relaytest runs the reference relay in-process for tests.
package relaytest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/relay"
	"heartx/internal/relayserver"
	"heartx/internal/services/keyvault"
)

// Password satisfies the key vault policy.
const Password = "Test-Password-1"

// FastLock is a cheap KDF setting for tests.
var FastLock = crypto.Params{KDF: crypto.KDFScrypt, N: 1 << 10, R: 8, P: 1}

// Relay is a running reference relay.
type Relay struct {
	URL    string
	Server *relayserver.Server
}

// New starts a relay with rate limiting disabled; it stops when t ends.
func New(t testing.TB, opts ...relayserver.Option) *Relay {
	t.Helper()
	cfg := relayserver.DefaultConfig()
	cfg.Rate = relayserver.RateConfig{}
	opts = append([]relayserver.Option{relayserver.WithLogger(logging.Discard())}, opts...)
	srv := relayserver.New(cfg, opts...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &Relay{URL: hs.URL, Server: srv}
}

// Client returns a relay client acting as id.
func (r *Relay) Client(id domain.Identity) *relay.HTTP {
	return relay.NewHTTP(r.URL, nil, domain.Credentials{Identity: id, Token: "test"})
}

// Register publishes fresh keys for id and returns its open session.
func (r *Relay) Register(t testing.TB, id domain.Identity) (*keyvault.Session, *relay.HTTP) {
	t.Helper()
	c := r.Client(id)
	vault := keyvault.New(c, keyvault.WithLogger(logging.Discard()), keyvault.WithLockParams(FastLock))
	sess, err := vault.Register(context.Background(), id, Password)
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	t.Cleanup(sess.Close)
	return sess, c
}

// Clock is a manually advanced clock for relayserver.WithClock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock { return &Clock{t: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
