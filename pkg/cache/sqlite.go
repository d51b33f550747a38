package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a persistent Store backed by a SQLite database file.
// Entries survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and if needed creates) the cache database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"CREATE TABLE IF NOT EXISTS cache (key TEXT PRIMARY KEY, entry BLOB NOT NULL, stored_at INTEGER NOT NULL)",
		"CREATE INDEX IF NOT EXISTS cache_stored_at_idx ON cache (stored_at)",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT entry FROM cache WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: sqlite select: %v", ErrBackendUnavailable, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	CacheHits.WithLabelValues("sqlite").Inc()
	return entry, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	data, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: sqlite begin: %v", ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	var previous int64
	err = tx.QueryRowContext(ctx, "SELECT length(entry) FROM cache WHERE key = ?", key).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: sqlite select: %v", ErrBackendUnavailable, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, entry, stored_at) VALUES (?, ?, ?)",
		key, data, entry.StoredAt.Unix())
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: sqlite upsert: %v", ErrBackendUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("%w: sqlite commit: %v", ErrBackendUnavailable, err)
	}

	CacheSize.WithLabelValues("sqlite").Add(float64(int64(len(data)) - previous))
	return nil
}

// DeletePrefix implements Store.
func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: sqlite begin: %v", ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	var count, size int64
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(length(entry)), 0) FROM cache WHERE instr(key, ?) = 1",
		prefix).Scan(&count, &size)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: sqlite select: %v", ErrBackendUnavailable, err)
	}
	if count == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache WHERE instr(key, ?) = 1", prefix); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: sqlite delete: %v", ErrBackendUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("%w: sqlite commit: %v", ErrBackendUnavailable, err)
	}

	CacheSize.WithLabelValues("sqlite").Sub(float64(size))
	return int(count), nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) (*Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return nil, fmt.Errorf("%w: sqlite begin: %v", ErrBackendUnavailable, err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, "SELECT entry FROM cache WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("delete").Inc()
		return nil, fmt.Errorf("%w: sqlite select: %v", ErrBackendUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return nil, fmt.Errorf("%w: sqlite delete: %v", ErrBackendUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return nil, fmt.Errorf("%w: sqlite commit: %v", ErrBackendUnavailable, err)
	}

	CacheSize.WithLabelValues("sqlite").Sub(float64(len(data)))
	return decodeEntry(data)
}
