package rate

import (
	"sync"

	"github.com/rezkym/fx-exchange/pkg/currency"
)

// Store keeps the rate series for a single currency pair. History is
// replaced wholesale when the window or pair changes; live observations are
// merged on top of it by Snapshot.
type Store struct {
	mu      sync.RWMutex
	pair    currency.Pair
	history []Point
	live    *Point
}

// NewStore creates an empty store bound to pair.
func NewStore(pair currency.Pair) *Store {
	return &Store{pair: pair}
}

// Pair returns the pair this store is bound to.
func (s *Store) Pair() currency.Pair {
	return s.pair
}

// Append pushes p onto the history when it is strictly newer than the last
// point. Late or duplicate observations and points quoted on another pair
// are discarded. It reports whether the point was kept.
func (s *Store) Append(p Point) bool {
	if p.Pair() != s.pair {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.history); n > 0 && !p.Time.After(s.history[n-1].Time) {
		return false
	}
	s.history = append(s.history, p)
	return true
}

// ReplaceHistory swaps the history for points. Points are expected to be
// time-ordered already and are stored without sorting or filtering.
func (s *Store) ReplaceHistory(points []Point) {
	cp := make([]Point, len(points))
	copy(cp, points)

	s.mu.Lock()
	s.history = cp
	s.mu.Unlock()
}

// ObserveLive records the most recent live observation.
func (s *Store) ObserveLive(p Point) {
	s.mu.Lock()
	s.live = &p
	s.mu.Unlock()
}

// Live returns the last live observation, if any.
func (s *Store) Live() (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live == nil {
		return Point{}, false
	}
	return *s.live, true
}

// Snapshot returns the series to display: the history, followed by the
// latest live point when it is quoted on this store's pair and is strictly
// newer than the last history point. The returned slice is a copy.
func (s *Store) Snapshot() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Point, len(s.history), len(s.history)+1)
	copy(out, s.history)

	if s.live == nil || s.live.Pair() != s.pair {
		return out
	}
	if n := len(s.history); n > 0 && !s.live.Time.After(s.history[n-1].Time) {
		return out
	}
	return append(out, *s.live)
}

// Last returns the newest point of the effective series.
func (s *Store) Last() (Point, bool) {
	snap := s.Snapshot()
	if len(snap) == 0 {
		return Point{}, false
	}
	return snap[len(snap)-1], true
}

// Len returns the number of history points, excluding any live point.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
