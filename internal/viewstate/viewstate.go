// Package viewstate is a tiny origin-scoped key/value store that survives
// view reloads and process restarts (the terminal counterpart of a browser's
// localStorage). It is backed by SQLite.
package viewstate

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ScrollKey holds the list offset recorded right before a mutating request.
const ScrollKey = "scrollY"

type Store struct {
	db     *sql.DB
	origin string
}

// Open opens (creating if needed) the database at path. origin scopes every
// key, so one database can serve several servers.
func Open(ctx context.Context, path string, origin string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("viewstate: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		origin TEXT NOT NULL,
		k TEXT NOT NULL,
		v TEXT NOT NULL,
		updated_at_unixms INTEGER NOT NULL,
		PRIMARY KEY(origin, k)
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, origin: strings.TrimSpace(origin)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(origin, k, v, updated_at_unixms) VALUES(?, ?, ?, ?)
		 ON CONFLICT(origin, k) DO UPDATE SET v = excluded.v, updated_at_unixms = excluded.updated_at_unixms`,
		s.origin, key, value, time.Now().UnixMilli())
	return err
}

// GetItem reports ok=false when the key was never set.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE origin = ? AND k = ?`, s.origin, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE origin = ? AND k = ?`, s.origin, key)
	return err
}

func (s *Store) SetScroll(ctx context.Context, y int) error {
	return s.SetItem(ctx, ScrollKey, strconv.Itoa(y))
}

// Scroll returns the last recorded offset. A corrupt value reads as unset.
func (s *Store) Scroll(ctx context.Context) (int, bool, error) {
	v, ok, err := s.GetItem(ctx, ScrollKey)
	if err != nil || !ok {
		return 0, false, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || y < 0 {
		return 0, false, nil
	}
	return y, true, nil
}
