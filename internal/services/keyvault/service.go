package keyvault

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
)

const (
	// minPasswordLength defines the minimum number of characters required for a password.
	minPasswordLength = 12

	baseLockout = time.Second
	maxLockout  = 32 * time.Second
)

var (
	// ErrWeakPassword is returned when the password fails the strength policy.
	ErrWeakPassword = fmt.Errorf(
		"password is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPasswordLength,
	)
	// ErrLocked is returned while failed attempts are cooling down.
	ErrLocked = errors.New("unlock attempts are temporarily locked")
)

type attempts struct {
	failed      int
	lockedUntil time.Time
}

// Service generates, locks and unlocks key pairs using a relay for storage.
type Service struct {
	relay  domain.KeyRelay
	log    log.FieldLogger
	params crypto.Params
	now    func() time.Time

	mu    sync.Mutex
	fails map[domain.Identity]*attempts
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithLockParams overrides the password KDF cost.
func WithLockParams(p crypto.Params) Option { return func(s *Service) { s.params = p } }

// WithClock sets the clock used for lockouts.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New returns a key vault backed by relay.
func New(relay domain.KeyRelay, opts ...Option) *Service {
	s := &Service{
		relay:  relay,
		params: crypto.ScryptParams,
		now:    time.Now,
		fails:  make(map[domain.Identity]*attempts),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	return s
}

// GenerateKeyPair creates a fresh key pair locally.
func (s *Service) GenerateKeyPair() (domain.KeyPair, error) {
	kp, err := crypto.GenerateX25519()
	if err != nil {
		return domain.KeyPair{}, errors.Wrap(err, "generate key pair")
	}
	return kp, nil
}

// Lock seals priv under password.
func (s *Service) Lock(priv domain.X25519Private, password string) (domain.EncryptedPrivateKey, error) {
	blob, err := crypto.Seal([]byte(password), priv[:], s.params)
	if err != nil {
		return nil, errors.Wrap(err, "lock private key")
	}
	return blob, nil
}

// Unlock opens enc with password. Any failure is domain.ErrAuthFailure.
func (s *Service) Unlock(enc domain.EncryptedPrivateKey, password string) (domain.X25519Private, error) {
	var priv domain.X25519Private
	pt, err := crypto.Open([]byte(password), enc)
	if err != nil || len(pt) != len(priv) {
		crypto.Wipe(pt)
		return priv, domain.ErrAuthFailure
	}
	copy(priv[:], pt)
	crypto.Wipe(pt)
	return priv, nil
}

// Register creates and publishes a key pair for id and opens a session.
func (s *Service) Register(ctx context.Context, id domain.Identity, password string) (*Session, error) {
	if !isSecurePassword(password) {
		return nil, ErrWeakPassword
	}
	kp, err := s.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	enc, err := s.Lock(kp.Private, password)
	if err != nil {
		return nil, err
	}
	reg := domain.Registration{Identity: id, PublicKey: kp.Public, EncryptedPrivateKey: enc}
	if err := s.relay.PublishKeys(ctx, reg); err != nil {
		crypto.Wipe(kp.Private[:])
		return nil, errors.Wrap(err, "publish keys")
	}
	s.log.WithField("identity", id).Info("registered key pair")
	return newSession(id, kp.Public, &kp.Private), nil
}

// Login fetches the sealed key for id, unlocks it and opens a session.
func (s *Service) Login(ctx context.Context, id domain.Identity, password string) (*Session, error) {
	if err := s.checkLock(id); err != nil {
		return nil, err
	}
	reg, err := s.relay.FetchKeys(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch keys")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priv, err := s.Unlock(reg.EncryptedPrivateKey, password)
	if err == nil {
		err = matchesPublic(priv, reg.PublicKey)
	}
	if err != nil {
		crypto.Wipe(priv[:])
		s.recordFailure(id)
		s.log.WithField("identity", id).Warn("unlock failed")
		return nil, err
	}
	s.resetFailures(id)
	return newSession(id, reg.PublicKey, &priv), nil
}

// matchesPublic rejects a key that opened but does not belong to the registration.
func matchesPublic(priv domain.X25519Private, want domain.X25519Public) error {
	got, err := crypto.PublicFromPrivate(priv)
	if err != nil || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
		return domain.ErrAuthFailure
	}
	return nil
}

func (s *Service) checkLock(id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.fails[id]
	if ok && s.now().Before(a.lockedUntil) {
		return ErrLocked
	}
	return nil
}

func (s *Service) recordFailure(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.fails[id]
	if !ok {
		a = &attempts{}
		s.fails[id] = a
	}
	a.failed++
	a.lockedUntil = s.now().Add(lockoutFor(a.failed))
}

func (s *Service) resetFailures(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, id)
}

func lockoutFor(failed int) time.Duration {
	d := baseLockout
	for i := 1; i < failed && d < maxLockout; i++ {
		d *= 2
	}
	if d > maxLockout {
		d = maxLockout
	}
	return d
}

// isSecurePassword enforces a basic strength policy.
func isSecurePassword(password string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(password) < minPasswordLength {
		return false
	}
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
