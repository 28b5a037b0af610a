// Package settings persists client preferences in a small SQLite key/value
// table and exposes the background music volume as an observable value.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Persisted keys.
const (
	KeyAppLocale = "app_locale"
	KeyBGMVolume = "bgm_volume"
)

const DefaultBGMVolume = 0.5

type Store struct {
	db *sql.DB

	mu     sync.Mutex
	volume float64
	subs   map[int]func(float64)
	nextID int
}

// Open opens or creates the settings database at path. ":memory:" keeps
// everything in process.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty settings path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, volume: DefaultBGMVolume, subs: map[int]func(float64){}}
	raw, ok, err := s.GetString(KeyBGMVolume)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			s.volume = clamp(v)
		}
	}
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// GetString returns the stored value and whether the key exists.
func (s *Store) GetString(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetString(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings(key, value, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) BGMVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetBGMVolume clamps v to [0,1], persists it and notifies subscribers.
func (s *Store) SetBGMVolume(v float64) error {
	v = clamp(v)
	if err := s.SetString(KeyBGMVolume, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return err
	}
	s.mu.Lock()
	if s.volume == v {
		s.mu.Unlock()
		return nil
	}
	s.volume = v
	subs := make([]func(float64), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
	return nil
}

// OnBGMVolumeChange registers fn for volume changes and returns a function
// that removes it.
func (s *Store) OnBGMVolumeChange(fn func(float64)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
