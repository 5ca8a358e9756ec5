// Package directory resolves identities to public keys. Lookups go through an
// in-memory expirable LRU, then the local snapshot, and finally a bulk fetch
// of the whole relay directory so individual lookups are not visible to it.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/domain"
)

// Config bounds the two cache tiers.
type Config struct {
	MaxEntries int
	TTL        time.Duration
	MaxAge     time.Duration
}

// DefaultConfig is used for zero fields.
var DefaultConfig = Config{MaxEntries: 1024, TTL: 10 * time.Minute, MaxAge: 24 * time.Hour}

// Service is a read-through public key cache.
type Service struct {
	relay domain.DirectoryRelay
	store domain.DirectoryStore
	log   log.FieldLogger
	cfg   Config
	now   func() time.Time

	mem *expirable.LRU[domain.Identity, domain.X25519Public]

	// fetchMu serializes bulk fetches so concurrent misses share one request.
	fetchMu sync.Mutex
	loaded  bool
}

// New returns a directory service. store may be nil.
func New(relay domain.DirectoryRelay, store domain.DirectoryStore, cfg Config, l log.FieldLogger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig.MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig.TTL
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig.MaxAge
	}
	if l == nil {
		l = log.StandardLogger()
	}
	return &Service{
		relay: relay,
		store: store,
		log:   l,
		cfg:   cfg,
		now:   time.Now,
		mem:   expirable.NewLRU[domain.Identity, domain.X25519Public](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// SetClock overrides the clock used for snapshot staleness.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns the public key for id.
func (s *Service) Get(ctx context.Context, id domain.Identity) (domain.X25519Public, error) {
	if pub, ok := s.mem.Get(id); ok {
		return pub, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if pub, ok := s.mem.Get(id); ok {
		return pub, nil
	}
	if !s.loaded {
		if pub, ok := s.fromSnapshot(id); ok {
			return pub, nil
		}
	}
	dir, err := s.fetch(ctx)
	if err != nil {
		return domain.X25519Public{}, err
	}
	pub, ok := dir[id]
	if !ok || pub.IsZero() {
		return domain.X25519Public{}, errors.Wrapf(domain.ErrNotFound, "public key for %q", id)
	}
	return pub, nil
}

// Lookup resolves several identities, fetching at most once.
func (s *Service) Lookup(ctx context.Context, ids []domain.Identity) (map[domain.Identity]domain.X25519Public, error) {
	out := make(map[domain.Identity]domain.X25519Public, len(ids))
	for _, id := range ids {
		pub, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = pub
	}
	return out, nil
}

// Refresh forces a bulk fetch and repopulates both tiers.
func (s *Service) Refresh(ctx context.Context) (domain.Directory, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	return s.fetch(ctx)
}

// Forget evicts id from memory; the next Get falls through to the relay.
func (s *Service) Forget(id domain.Identity) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	s.mem.Remove(id)
	s.loaded = false
}

// fromSnapshot consults the local file tier. Caller holds fetchMu.
func (s *Service) fromSnapshot(id domain.Identity) (domain.X25519Public, bool) {
	if s.store == nil {
		return domain.X25519Public{}, false
	}
	dir, fetchedAt, ok, err := s.store.LoadDirectory()
	if err != nil {
		s.log.WithError(err).Warn("directory snapshot unreadable")
		return domain.X25519Public{}, false
	}
	if !ok || s.now().Sub(fetchedAt) > s.cfg.MaxAge {
		return domain.X25519Public{}, false
	}
	pub, ok := dir[id]
	if !ok || pub.IsZero() {
		return domain.X25519Public{}, false
	}
	s.mem.Add(id, pub)
	return pub, true
}

// fetch pulls the full directory. Caller holds fetchMu.
func (s *Service) fetch(ctx context.Context) (domain.Directory, error) {
	dir, err := s.relay.FetchDirectory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch directory")
	}
	s.mem.Purge()
	for id, pub := range dir {
		if pub.IsZero() {
			continue
		}
		s.mem.Add(id, pub)
	}
	s.loaded = true
	if s.store != nil {
		if err := s.store.SaveDirectory(dir, s.now()); err != nil {
			s.log.WithError(err).Warn("directory snapshot not saved")
		}
	}
	s.log.WithField("entries", len(dir)).Debug("directory refreshed")
	return dir, nil
}
