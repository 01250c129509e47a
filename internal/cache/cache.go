// Package cache keeps recently fetched weather snapshots per location.
//
// The whole table is persisted as one JSON blob under a single key of the
// underlying store.KV and rewritten on every mutation. A blob that cannot be
// read or decoded is treated as an empty table.
package cache

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	// StorageKey is the KV key holding the serialized table.
	StorageKey = "weather_data_cache"

	DefaultTTL      = 10 * time.Minute
	DefaultCapacity = 50
)

// Entry is one cached weather/forecast pair.
type Entry struct {
	Weather   weather.CurrentConditions `json:"weather"`
	Forecast  weather.Forecast          `json:"forecast"`
	Timestamp int64                     `json:"timestamp"` // write time, unix milliseconds
}

// WrittenAt returns the entry's write time.
func (e Entry) WrittenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

type table map[string]Entry

// Store is a bounded, TTL-based cache of weather snapshots keyed by
// weather.Location.Key. Capacity overflow evicts the oldest writes first.
type Store struct {
	mu sync.Mutex

	kv       store.KV
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store persisting into kv.
func New(kv store.KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the fresh entry for loc. A stale entry is deleted and reported
// as absent.
func (s *Store) Get(loc weather.Location) (Entry, bool) {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.load()
	e, ok := t[key]
	if !ok {
		return Entry{}, false
	}

	if s.age(e) > s.ttl {
		delete(t, key)
		s.save(t)
		log.Printf("DEBUG: cache entry %s expired", key)
		return Entry{}, false
	}
	return e, true
}

// Put stores the pair for loc stamped with the current time, then trims the
// table to capacity.
func (s *Store) Put(loc weather.Location, current weather.CurrentConditions, forecast weather.Forecast) {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.load()
	t[key] = Entry{
		Weather:   current,
		Forecast:  forecast,
		Timestamp: s.now().UnixMilli(),
	}

	if over := len(t) - s.capacity; over > 0 {
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return t[keys[i]].Timestamp < t[keys[j]].Timestamp
		})
		for _, k := range keys[:over] {
			delete(t, k)
		}
	}

	s.save(t)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(StorageKey); err != nil {
		log.Printf("ERROR: clearing weather cache: %v", err)
	}
}

// RemainingTTL returns how long the entry for loc stays fresh, or 0 when it
// is absent or already stale.
func (s *Store) RemainingTTL(loc weather.Location) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load()[loc.Key()]
	if !ok {
		return 0
	}
	return max(0, s.ttl-s.age(e))
}

// Len returns the number of stored entries, stale ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.load())
}

func (s *Store) age(e Entry) time.Duration {
	return s.now().Sub(e.WrittenAt())
}

func (s *Store) load() table {
	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		log.Printf("ERROR: reading weather cache: %v", err)
		return make(table)
	}
	if !ok || raw == "" {
		return make(table)
	}

	var t table
	if err := json.Unmarshal([]byte(raw), &t); err != nil || t == nil {
		log.Printf("ERROR: weather cache is corrupted, starting empty: %v", err)
		return make(table)
	}
	return t
}

func (s *Store) save(t table) {
	raw, err := json.Marshal(t)
	if err != nil {
		log.Printf("ERROR: encoding weather cache: %v", err)
		return
	}
	if err := s.kv.Set(StorageKey, string(raw)); err != nil {
		log.Printf("ERROR: writing weather cache: %v", err)
	}
}
