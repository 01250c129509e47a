package session

import (
	"sync"
	"time"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Snapshot is a consistent copy of the State.
type Snapshot struct {
	Current    *weather.CurrentConditions `json:"currentWeather"`
	Forecast   *weather.Forecast          `json:"forecastData"`
	Loading    bool                       `json:"isLoading"`
	Refreshing bool                       `json:"isRefreshing"`
	Error      string                     `json:"error,omitempty"`
	LastUpdate *time.Time                 `json:"lastUpdateTime,omitempty"`
}

// State holds what the UI currently displays. Readers always observe a
// complete Snapshot; the current/forecast pair is never seen half-updated.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// New creates an empty State.
func New() *State {
	return &State{
		now:  time.Now,
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SetCurrent replaces the current conditions and clears any error.
func (s *State) SetCurrent(c *weather.CurrentConditions) {
	s.update(func(snap *Snapshot) {
		snap.Current = c
		snap.Error = ""
	})
}

// SetForecast replaces the forecast.
func (s *State) SetForecast(f *weather.Forecast) {
	s.update(func(snap *Snapshot) {
		snap.Forecast = f
	})
}

// SetWeather replaces both records in one step and clears any error.
func (s *State) SetWeather(c weather.CurrentConditions, f weather.Forecast) {
	s.update(func(snap *Snapshot) {
		snap.Current = &c
		snap.Forecast = &f
		snap.Error = ""
	})
}

func (s *State) SetLoading(loading bool) {
	s.update(func(snap *Snapshot) {
		snap.Loading = loading
	})
}

func (s *State) SetRefreshing(refreshing bool) {
	s.update(func(snap *Snapshot) {
		snap.Refreshing = refreshing
	})
}

// SetError records msg and drops both progress flags. An empty msg clears
// the error.
func (s *State) SetError(msg string) {
	s.update(func(snap *Snapshot) {
		snap.Error = msg
		snap.Loading = false
		snap.Refreshing = false
	})
}

// MarkUpdated stamps the last successful update time.
func (s *State) MarkUpdated() {
	s.update(func(snap *Snapshot) {
		t := s.now()
		snap.LastUpdate = &t
	})
}

// Clear resets the state to empty.
func (s *State) Clear() {
	s.update(func(snap *Snapshot) {
		*snap = Snapshot{}
	})
}

// Apply runs fn against the state under a single lock so several fields
// change together, and notifies subscribers once.
func (s *State) Apply(fn func(snap *Snapshot)) {
	s.update(fn)
}

func (s *State) update(fn func(snap *Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.snap)
	// publish under mu so subscribers see snapshots in commit order
	s.publish(s.snap)
}

// Subscribe returns a channel receiving every new snapshot and a function
// that cancels the subscription. A subscriber that falls behind only ever
// sees the latest snapshot.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *State) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		// Replace a pending, unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
