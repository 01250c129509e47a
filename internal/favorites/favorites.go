// Package favorites persists the user's saved cities and recent searches.
package favorites

import (
	"errors"
	"log"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/i474232898/weather-dashboard/internal/store"
)

const (
	// StorageKey is the KV key holding the serialized favorites.
	StorageKey = "weather_city_storage"

	maxSearchHistory = 10
)

var (
	// ErrNotFound is returned for an unknown favorite id.
	ErrNotFound = errors.New("favorite city not found")
)

// City is a saved location.
type City struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Province    string  `json:"province,omitempty"`
	District    string  `json:"district,omitempty"`
	Country     string  `json:"country"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Order       int     `json:"order"`
	Temperature *int    `json:"temperature,omitempty"`
	WeatherIcon string  `json:"weatherIcon,omitempty"`
	QueryName   string  `json:"queryName,omitempty"` // name used for provider lookups
}

type document struct {
	Favorites     []City   `json:"favoriteCities"`
	SearchHistory []string `json:"searchHistory"`
}

// Store keeps favorites and search history in a store.KV.
type Store struct {
	mu sync.Mutex
	kv store.KV
}

func New(kv store.KV) *Store {
	return &Store{kv: kv}
}

// List returns the favorites in display order.
func (s *Store) List() []City {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load().Favorites
}

// Add appends c with a fresh id and returns the stored city.
func (s *Store) Add(c City) (City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	c.ID = uuid.NewString()
	doc.Favorites = reindex(append(doc.Favorites, c))

	if err := s.save(doc); err != nil {
		return City{}, err
	}
	return doc.Favorites[len(doc.Favorites)-1], nil
}

// Remove deletes the favorite with id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	out := doc.Favorites[:0]
	for _, c := range doc.Favorites {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == len(doc.Favorites) {
		return ErrNotFound
	}
	doc.Favorites = reindex(out)
	return s.save(doc)
}

// UpdateTemperature records the last seen temperature and icon of a favorite.
func (s *Store) UpdateTemperature(id string, temperature int, icon string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	for i := range doc.Favorites {
		if doc.Favorites[i].ID == id {
			doc.Favorites[i].Temperature = &temperature
			doc.Favorites[i].WeatherIcon = icon
			return s.save(doc)
		}
	}
	return ErrNotFound
}

// Reorder sorts favorites to follow ids. Every stored favorite must appear
// exactly once.
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	if len(ids) != len(doc.Favorites) {
		return ErrNotFound
	}

	byID := make(map[string]City, len(doc.Favorites))
	for _, c := range doc.Favorites {
		byID[c.ID] = c
	}

	out := make([]City, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return ErrNotFound
		}
		delete(byID, id)
		out = append(out, c)
	}
	doc.Favorites = reindex(out)
	return s.save(doc)
}

// AddSearch puts query at the front of the search history, dropping
// duplicates and keeping the most recent entries.
func (s *Store) AddSearch(query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	history := []string{query}
	for _, q := range doc.SearchHistory {
		if q != query {
			history = append(history, q)
		}
	}
	if len(history) > maxSearchHistory {
		history = history[:maxSearchHistory]
	}
	doc.SearchHistory = history
	return s.save(doc)
}

// SearchHistory returns recent searches, most recent first.
func (s *Store) SearchHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load().SearchHistory
}

func (s *Store) ClearSearchHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	doc.SearchHistory = nil
	return s.save(doc)
}

func reindex(cities []City) []City {
	for i := range cities {
		cities[i].Order = i
	}
	return cities
}

func (s *Store) load() document {
	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		log.Printf("ERROR: reading favorites: %v", err)
		return document{}
	}
	if !ok {
		return document{}
	}

	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		log.Printf("ERROR: favorites are corrupted, starting empty: %v", err)
		return document{}
	}
	return doc
}

func (s *Store) save(doc document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.kv.Set(StorageKey, string(raw))
}
