package fetchcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

const (
	driverLibsql  = "libsql"
	storeFileName = "cache.db"
)

var storeSchema = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at);`,
	`CREATE INDEX IF NOT EXISTS idx_entries_stored ON entries(stored_at);`,
}

// Store is a disk-backed key/value store scoped to one cache directory.
// Values are stored as JSON text with an optional expiry instant. Instances
// are registered per directory on an Env; do not construct directly.
type Store struct {
	db        *sql.DB
	dir       string
	sizeLimit int64
}

func openStore(ctx context.Context, dir string, sizeLimit int64) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// #nosec G301 -- cache directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dsn := "file:" + filepath.Join(dir, storeFileName)
	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache store: %w", err)
	}

	for _, stmt := range storeSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate cache store: %w", err)
		}
	}

	return &Store{db: db, dir: dir, sizeLimit: sizeLimit}, nil
}

// Directory returns the cache directory this store owns.
func (s *Store) Directory() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// SizeLimit returns the store's size limit in bytes.
func (s *Store) SizeLimit() int64 {
	if s == nil {
		return 0
	}
	return s.sizeLimit
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored value for key if present and unexpired.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	row := s.db.QueryRowContext(ctx, `
		SELECT value FROM entries
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, time.Now().UnixNano())

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetch cache entry: %w", err)
	}
	return value, true, nil
}

// Set stores a value, replacing any previous entry for key. A non-positive
// ttl means the entry never expires. Writes that push the store over its
// size limit evict oldest entries afterwards.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, value, now.UnixNano(), expiresAt)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	return s.enforceSizeLimit(ctx)
}

func (s *Store) enforceSizeLimit(ctx context.Context) error {
	if s.sizeLimit <= 0 || s.sizeLimit == math.MaxInt64 {
		return nil
	}

	for {
		volume, err := s.Volume(ctx)
		if err != nil {
			return err
		}
		if volume <= s.sizeLimit {
			return nil
		}
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM entries WHERE key IN (
				SELECT key FROM entries ORDER BY stored_at ASC LIMIT 1
			)
		`)
		if err != nil {
			return fmt.Errorf("evict cache entries: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
	}
}

// Delete removes a single entry. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry in the store.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return fmt.Errorf("clear cache store: %w", err)
	}
	return nil
}

// Count returns the number of stored entries, expired ones included.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// Volume returns the byte volume of stored values.
func (s *Store) Volume(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var bytes int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(LENGTH(value)), 0) FROM entries`).Scan(&bytes); err != nil {
		return 0, fmt.Errorf("measure cache volume: %w", err)
	}
	return bytes, nil
}

// Entry is one stored key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Entries returns every stored entry, expired ones included, for export.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM entries ORDER BY stored_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return entries, nil
}
