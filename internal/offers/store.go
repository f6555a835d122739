// Package offers holds the session's point balance, cumulative carbon score
// and the reward catalog partitioned into available and upcoming offers.
//
// A Store is the single owner of that state. Every operation runs to
// completion under one lock, so operations are applied in the order they are
// invoked and either apply fully or leave the state untouched.
package offers

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInvalidInput is returned for negative deltas and malformed catalogs.
var ErrInvalidInput = errors.New("invalid input")

// Observer is notified with a copy of the state after every successful
// mutation. Observers run while the store is locked and must not call back
// into the store.
type Observer func(AppState)

// Store owns the AppState of one session.
type Store struct {
	mu        sync.Mutex
	points    int
	carbon    float64
	available []Offer
	upcoming  []UpcomingOffer
	observers []Observer
}

// New returns a store with zero totals and an empty catalog.
func New() *Store {
	return &Store{
		available: []Offer{},
		upcoming:  []UpcomingOffer{},
	}
}

// Subscribe registers fn to be called after each successful mutation.
func (s *Store) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// AddPoints adds delta to the total and repartitions the known catalog
// against the new balance.
func (s *Store) AddPoints(delta int) error {
	if delta < 0 {
		return fmt.Errorf("add points %d: %w", delta, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.points + delta
	if total < s.points {
		return fmt.Errorf("add points %d: total overflows: %w", delta, ErrInvalidInput)
	}
	s.points = total
	s.available, s.upcoming = Recalculate(union(s.available, s.upcoming), s.points)
	s.notifyLocked()
	return nil
}

// UpdateCarbonScore adds delta to the cumulative carbon score. Offers are not
// affected.
func (s *Store) UpdateCarbonScore(delta float64) error {
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("update carbon score %v: %w", delta, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carbon += delta
	s.notifyLocked()
	return nil
}

// Credit applies a completed scan: it adds points and carbon together and
// notifies observers once. Both values are checked before either is applied.
func (s *Store) Credit(points int, carbon float64) error {
	if points < 0 {
		return fmt.Errorf("credit points %d: %w", points, ErrInvalidInput)
	}
	if carbon < 0 || math.IsNaN(carbon) || math.IsInf(carbon, 0) {
		return fmt.Errorf("credit carbon %v: %w", carbon, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.points + points
	if total < s.points {
		return fmt.Errorf("credit points %d: total overflows: %w", points, ErrInvalidInput)
	}
	s.points = total
	s.carbon += carbon
	s.available, s.upcoming = Recalculate(union(s.available, s.upcoming), s.points)
	s.notifyLocked()
	return nil
}

// AddOffers replaces the known catalog with offers and partitions it against
// the current balance. The previous catalog is discarded, not merged.
func (s *Store) AddOffers(offers []Offer) error {
	if err := checkCatalog(offers); err != nil {
		return fmt.Errorf("add offers: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.available, s.upcoming = Recalculate(offers, s.points)
	s.notifyLocked()
	return nil
}

// Reset returns the store to its initial session state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = 0
	s.carbon = 0
	s.available = []Offer{}
	s.upcoming = []UpcomingOffer{}
	s.notifyLocked()
}

// State returns a copy of the current state.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Catalog returns the known catalog in partition order.
func (s *Store) Catalog() []Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return union(s.available, s.upcoming)
}

// Lookup finds an offer of the known catalog by id.
func (s *Store) Lookup(id string) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.available {
		if o.ID == id {
			return o, true
		}
	}
	for _, u := range s.upcoming {
		if u.ID == id {
			return u.Offer, true
		}
	}
	return Offer{}, false
}

// IsAvailable reports whether the offer with id is currently redeemable.
func (s *Store) IsAvailable(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.available {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns the totals and full catalog.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TotalPoints: s.points,
		CarbonScore: s.carbon,
		Catalog:     union(s.available, s.upcoming),
	}
}

// LoadState replaces the whole state with snap after validating it.
func (s *Store) LoadState(snap Snapshot) error {
	if snap.TotalPoints < 0 {
		return fmt.Errorf("load state: total points %d: %w", snap.TotalPoints, ErrInvalidInput)
	}
	if snap.CarbonScore < 0 || math.IsNaN(snap.CarbonScore) || math.IsInf(snap.CarbonScore, 0) {
		return fmt.Errorf("load state: carbon score %v: %w", snap.CarbonScore, ErrInvalidInput)
	}
	if err := checkCatalog(snap.Catalog); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = snap.TotalPoints
	s.carbon = snap.CarbonScore
	s.available, s.upcoming = Recalculate(snap.Catalog, s.points)
	s.notifyLocked()
	return nil
}

func (s *Store) stateLocked() AppState {
	available := make([]Offer, len(s.available))
	copy(available, s.available)
	upcoming := make([]UpcomingOffer, len(s.upcoming))
	copy(upcoming, s.upcoming)
	return AppState{
		TotalPoints:     s.points,
		CarbonScore:     s.carbon,
		AvailableOffers: available,
		UpcomingOffers:  upcoming,
	}
}

func (s *Store) notifyLocked() {
	if len(s.observers) == 0 {
		return
	}
	for _, fn := range s.observers {
		fn(s.stateLocked())
	}
}

// checkCatalog enforces the Offer invariants: non-negative thresholds and
// unique ids.
func checkCatalog(catalog []Offer) error {
	seen := make(map[string]struct{}, len(catalog))
	for i, o := range catalog {
		if o.PointsRequired < 0 {
			return fmt.Errorf("offer[%d] %q: points required %d: %w", i, o.ID, o.PointsRequired, ErrInvalidInput)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("offer[%d]: duplicate id %q: %w", i, o.ID, ErrInvalidInput)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}
