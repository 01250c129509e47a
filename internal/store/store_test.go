package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set("k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set("k", "v2"); err != nil {
		t.Fatalf("Set (overwrite) failed: %v", err)
	}

	v, ok, err := kv.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("expected v2, got %q ok=%v err=%v", v, ok, err)
	}

	if err := kv.Remove("k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Fatal("expected key to be removed")
	}
	if err := kv.Remove("k"); err != nil {
		t.Fatalf("Remove of missing key failed: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer s.Close()

	exerciseKV(t, s)
}

func TestSQLiteKVPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	if err := s.Set("blob", `{"a":1}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = s.Close()

	s, err = NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	v, ok, err := s.Get("blob")
	if err != nil || !ok || v != `{"a":1}` {
		t.Fatalf("expected persisted blob, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestOpen(t *testing.T) {
	b, err := Open("memory", "")
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	exerciseKV(t, b)
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := Open("redis", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
