// Package late walks hearts that arrived after the identity committed through
// an explicit Arrived, Prompted, Accepted or Declined life cycle.
package late

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/domain"
	"heartx/internal/services/slots"
)

// ErrAlreadyDecided is returned when accepting or declining a terminal item.
var ErrAlreadyDecided = errors.New("late heart already decided")

// Reciprocator sends return entries for claimed fingerprints.
type Reciprocator interface {
	Reciprocate(ctx context.Context, b *slots.Board, fps []domain.Fingerprint) (int, error)
}

// Service persists the per-item decision state.
type Service struct {
	mu      sync.Mutex
	store   domain.LateStore
	returns Reciprocator
	log     log.FieldLogger
	now     func() time.Time
}

// New returns a reconciler over store.
func New(store domain.LateStore, returns Reciprocator, l log.FieldLogger) *Service {
	if l == nil {
		l = log.StandardLogger()
	}
	return &Service{store: store, returns: returns, log: l, now: time.Now}
}

// SetClock overrides the decision timestamp clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Track records unseen late claims as Arrived and reports how many were new.
func (s *Service) Track(claims []domain.ClaimedHeart) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, c := range claims {
		if _, seen := items[c.ID]; seen {
			continue
		}
		items[c.ID] = domain.LateItem{
			ID:          c.ID,
			Fingerprint: c.Fingerprint,
			SenderTag:   c.SenderTag,
			ArrivedAt:   c.ArrivedAt,
			State:       domain.LateArrived,
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.store.SaveLateItems(items)
}

// Pending moves Arrived items to Prompted and returns every undecided item.
func (s *Service) Pending() ([]domain.LateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	changed := false
	var out []domain.LateItem
	for id, it := range items {
		if it.State.Terminal() {
			continue
		}
		if it.State == domain.LateArrived {
			it.State = domain.LatePrompted
			items[id] = it
			changed = true
		}
		out = append(out, it)
	}
	if changed {
		if err := s.store.SaveLateItems(items); err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivedAt.Before(out[j].ArrivedAt) })
	return out, nil
}

// Items lists every tracked item regardless of state.
func (s *Service) Items() ([]domain.LateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.LateItem, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivedAt.Before(out[j].ArrivedAt) })
	return out, nil
}

// Accept includes the item in the return path toward every committed target
// on b. The item becomes Accepted only once the returns are on the relay.
func (s *Service) Accept(ctx context.Context, b *slots.Board, id string) (domain.LateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, it, err := s.decidable(id)
	if err != nil {
		return domain.LateItem{}, err
	}
	it.State = domain.LatePrompted
	items[id] = it

	n, err := s.returns.Reciprocate(ctx, b, []domain.Fingerprint{it.Fingerprint})
	if err != nil {
		if serr := s.store.SaveLateItems(items); serr != nil {
			s.log.WithError(serr).Warn("late items not saved")
		}
		return it, errors.Wrap(err, "accept late heart")
	}
	it.State = domain.LateAccepted
	it.DecidedAt = s.now()
	items[id] = it
	if err := s.store.SaveLateItems(items); err != nil {
		return it, err
	}
	s.log.WithFields(log.Fields{"item": id, "returns": n}).Info("late heart accepted")
	return it, nil
}

// Decline discards the item permanently.
func (s *Service) Decline(id string) (domain.LateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, it, err := s.decidable(id)
	if err != nil {
		return domain.LateItem{}, err
	}
	it.State = domain.LateDeclined
	it.DecidedAt = s.now()
	items[id] = it
	if err := s.store.SaveLateItems(items); err != nil {
		return it, err
	}
	s.log.WithField("item", id).Info("late heart declined")
	return it, nil
}

func (s *Service) decidable(id string) (map[string]domain.LateItem, domain.LateItem, error) {
	items, err := s.load()
	if err != nil {
		return nil, domain.LateItem{}, err
	}
	it, ok := items[id]
	if !ok {
		return nil, domain.LateItem{}, errors.Wrapf(domain.ErrNotFound, "late item %s", id)
	}
	if it.State.Terminal() {
		return nil, it, ErrAlreadyDecided
	}
	return items, it, nil
}

func (s *Service) load() (map[string]domain.LateItem, error) {
	items, err := s.store.LoadLateItems()
	if err != nil {
		return nil, errors.Wrap(err, "load late items")
	}
	if items == nil {
		items = make(map[string]domain.LateItem)
	}
	return items, nil
}
