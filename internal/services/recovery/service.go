// Package recovery seals the account password under a one-time recovery code
// and resets the identity when the password changes out of band.
package recovery

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
)

const (
	codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 16
	groupSize    = 8
)

// ErrInvalidCode is returned by Normalize for malformed input.
var ErrInvalidCode = errors.New("recovery code must be 16 letters or digits")

// Service registers and opens recovery capsules.
type Service struct {
	relay  domain.RecoveryRelay
	local  domain.Wiper
	params crypto.Params
	log    log.FieldLogger
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithParams overrides the capsule KDF cost.
func WithParams(p crypto.Params) Option { return func(s *Service) { s.params = p } }

// New returns a recovery service. local may be nil.
func New(relay domain.RecoveryRelay, local domain.Wiper, opts ...Option) *Service {
	s := &Service{relay: relay, local: local, params: crypto.Argon2idParams}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	return s
}

// GenerateCode returns a fresh code grouped as xxxxxxxx-xxxxxxxx. It is not stored.
func GenerateCode() (string, error) {
	raw, err := crypto.RandomString(codeLength, codeAlphabet)
	if err != nil {
		return "", errors.Wrap(err, "generate recovery code")
	}
	return raw[:groupSize] + "-" + raw[groupSize:], nil
}

// Normalize lowercases code and drops separators and whitespace.
func Normalize(code string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case strings.ContainsRune(codeAlphabet, r):
			b.WriteRune(r)
		default:
			return "", ErrInvalidCode
		}
	}
	if b.Len() != codeLength {
		return "", ErrInvalidCode
	}
	return b.String(), nil
}

// Register seals password under code and replaces any previous capsule.
func (s *Service) Register(ctx context.Context, code, password string) error {
	norm, err := Normalize(code)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password required")
	}
	capsule, err := crypto.Seal([]byte(norm), []byte(password), s.params)
	if err != nil {
		return errors.Wrap(err, "seal recovery capsule")
	}
	if err := s.relay.RegisterRecoveryCapsule(ctx, capsule); err != nil {
		return errors.Wrap(err, "register recovery capsule")
	}
	s.log.Info("recovery code registered")
	return nil
}

// Recover opens the capsule with code and returns the password.
//
// A wrong code and a damaged capsule are both domain.ErrAuthFailure.
func (s *Service) Recover(ctx context.Context, code string) (string, error) {
	norm, err := Normalize(code)
	if err != nil {
		return "", domain.ErrAuthFailure
	}
	capsule, err := s.relay.FetchRecoveryCapsule(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetch recovery capsule")
	}
	pt, err := crypto.Open([]byte(norm), capsule)
	if err != nil {
		s.log.Warn("recovery failed")
		return "", domain.ErrAuthFailure
	}
	password := string(pt)
	crypto.Wipe(pt)
	return password, nil
}

// Reset drops every relay record and local cache for the identity. Use it
// after the password changed through another channel; the old key, slots and
// capsule are unrecoverable afterwards.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.relay.ResetState(ctx); err != nil {
		return errors.Wrap(err, "reset relay state")
	}
	if s.local != nil {
		if err := s.local.Wipe(); err != nil {
			return errors.Wrap(err, "wipe local state")
		}
	}
	s.log.Warn("identity state reset")
	return nil
}
