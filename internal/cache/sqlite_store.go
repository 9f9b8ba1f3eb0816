package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fc-troll-detector/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps entries in a single table keyed by the durable key.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is allowed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	createTable := `
	CREATE TABLE IF NOT EXISTS profile_cache (
		cache_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		fetched_at_ms INTEGER NOT NULL,
		expires_at_ms INTEGER NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create profile_cache table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_profile_cache_expires ON profile_cache(expires_at_ms)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create profile_cache index: %w", err)
	}
	slog.Debug("cache: sqlite store ready", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, key string) (model.CacheEntry, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM profile_cache WHERE cache_key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("query profile_cache: %v: %w", err, model.ErrStorage)
	}
	var e model.CacheEntry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("decode profile_cache %s: %v: %w", key, err, model.ErrStorage)
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e model.CacheEntry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode profile_cache %s: %v: %w", key, err, model.ErrStorage)
	}
	expiresAt := e.FetchedAtMs + ttl.Milliseconds()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profile_cache (cache_key, payload, fetched_at_ms, expires_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			fetched_at_ms = excluded.fetched_at_ms,
			expires_at_ms = excluded.expires_at_ms`,
		key, string(b), e.FetchedAtMs, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert profile_cache %s: %v: %w", key, err, model.ErrStorage)
	}
	return nil
}

// Cleanup deletes entries that expired before now and reports how many.
func (s *SQLiteStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profile_cache WHERE expires_at_ms < ?", now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup profile_cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Debug("cache: removed expired entries", "count", n)
	}
	return n, nil
}

// Purge deletes every entry whose key starts with prefix.
func (s *SQLiteStore) Purge(ctx context.Context, prefix string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profile_cache WHERE substr(cache_key, 1, ?) = ?", len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("purge profile_cache: %w", err)
	}
	return res.RowsAffected()
}
