package trigger

import (
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// DefaultEvictionWindow is how long a fired key is remembered.
const DefaultEvictionWindow = 2 * time.Minute

// FiredSet remembers which triggers have fired recently.
// Keys older than the window are evicted on each Evict call so the set stays small.
type FiredSet struct {
	window time.Duration
	keys   map[model.FiredKey]struct{}
}

// NewFiredSet creates a set with the given eviction window.
func NewFiredSet(window time.Duration) *FiredSet {
	if window <= 0 {
		window = DefaultEvictionWindow
	}
	return &FiredSet{
		window: window,
		keys:   make(map[model.FiredKey]struct{}),
	}
}

// Window returns the eviction window.
func (s *FiredSet) Window() time.Duration {
	return s.window
}

// SetWindow changes the eviction window.
func (s *FiredSet) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultEvictionWindow
	}
	s.window = window
}

// Mark records key and reports whether it was new.
func (s *FiredSet) Mark(key model.FiredKey) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key is remembered.
func (s *FiredSet) Has(key model.FiredKey) bool {
	_, ok := s.keys[key]
	return ok
}

// Evict drops keys whose instant is more than the window before now.
// It returns the number of keys removed.
func (s *FiredSet) Evict(now time.Time) int {
	cutoff := now.Add(-s.window).Unix()
	removed := 0
	for k := range s.keys {
		if k.Instant < cutoff {
			delete(s.keys, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys.
func (s *FiredSet) Len() int {
	return len(s.keys)
}

// Clear forgets every key.
func (s *FiredSet) Clear() {
	clear(s.keys)
}

// evictionWindow widens the default window so a key outlives its tolerance.
func evictionWindow(tolerance time.Duration) time.Duration {
	if tolerance >= DefaultEvictionWindow {
		return tolerance + time.Minute
	}
	return DefaultEvictionWindow
}
