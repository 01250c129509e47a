package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLKV implements KV on a single kv table, using the pure Go sqlite driver
// or lib/pq for postgres.
type SQLKV struct {
	db *sql.DB

	getQuery    string
	setQuery    string
	removeQuery string
}

// NewSQLite opens (or creates) the sqlite database at path.
func NewSQLite(path string) (*SQLKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the frequent single-row rewrites cheap.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Println("WARN: could not set WAL mode:", err)
	}

	return newSQLKV(db, "?", "?")
}

// NewPostgres connects to postgres using dsn.
func NewPostgres(dsn string) (*SQLKV, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newSQLKV(db, "$1", "$2")
}

func newSQLKV(db *sql.DB, p1, p2 string) (*SQLKV, error) {
	schema := `CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLKV{
		db:          db,
		getQuery:    "SELECT value FROM kv WHERE key = " + p1,
		setQuery:    "INSERT INTO kv(key, value) VALUES(" + p1 + ", " + p2 + ") ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		removeQuery: "DELETE FROM kv WHERE key = " + p1,
	}, nil
}

func (s *SQLKV) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(s.getQuery, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLKV) Set(key, value string) error {
	_, err := s.db.Exec(s.setQuery, key, value)
	return err
}

func (s *SQLKV) Remove(key string) error {
	_, err := s.db.Exec(s.removeQuery, key)
	return err
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}
