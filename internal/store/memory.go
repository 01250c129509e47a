package store

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownDriver is returned by Open for unsupported backends.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// KV is the synchronous key-value persistence capability the cache and the
// favorites store are built on. A missing key is reported with ok=false and
// a nil error.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryKV is a concurrency-safe in-memory KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string]string),
	}
}

func (s *MemoryKV) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

func (s *MemoryKV) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Backend is a KV that holds resources.
type Backend interface {
	KV
	Close() error
}

type nopCloser struct{ KV }

func (nopCloser) Close() error { return nil }

// Open returns the backend named by driver: "memory", "sqlite" or "postgres".
// dsn is a file path for sqlite and a connection string for postgres.
func Open(driver, dsn string) (Backend, error) {
	switch driver {
	case "", "memory":
		return nopCloser{NewMemoryKV()}, nil
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
