package keyvault

import (
	"sync"

	"github.com/awnumar/memguard"

	"heartx/internal/domain"
)

// Session holds an unlocked key for the lifetime of one authenticated session.
type Session struct {
	identity domain.Identity
	public   domain.X25519Public

	mu  sync.RWMutex
	key *memguard.LockedBuffer
}

// newSession moves priv into guarded memory; the caller's copy is wiped.
func newSession(id domain.Identity, pub domain.X25519Public, priv *domain.X25519Private) *Session {
	return &Session{
		identity: id,
		public:   pub,
		key:      memguard.NewBufferFromBytes(priv[:]),
	}
}

// Identity returns the session owner.
func (s *Session) Identity() domain.Identity { return s.identity }

// PublicKey returns the owner's public key.
func (s *Session) PublicKey() domain.X25519Public { return s.public }

// KeyPair returns a copy of the unlocked key pair, or ErrSessionClosed.
func (s *Session) KeyPair() (domain.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil || !s.key.IsAlive() {
		return domain.KeyPair{}, domain.ErrSessionClosed
	}
	kp := domain.KeyPair{Public: s.public}
	copy(kp.Private[:], s.key.Bytes())
	return kp, nil
}

// Close destroys the guarded key. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		s.key.Destroy()
		s.key = nil
	}
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key == nil
}

// Compile-time assertion that Session implements domain.Session.
var _ domain.Session = (*Session)(nil)
