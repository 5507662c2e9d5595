// Package dbopen opens the SQLite databases used by progsync with
// production-safe pragmas.
//
// Default pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// For file databases the pragmas are passed as _pragma DSN parameters so that
// every pooled connection gets them, then verified once with EXEC.
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("progress.db", dbopen.WithSchema(progress.Schema))
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

const memoryPath = ":memory:"

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
	schemas     []string
}

func defaults() config {
	return config{
		busyTimeout: 10_000,
		synchronous: "NORMAL",
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues inline SQL to execute after pragmas are applied.
// Statements must be idempotent (CREATE ... IF NOT EXISTS).
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// Open opens an SQLite database at path. The caller must blank-import
// modernc.org/sqlite, which registers the "sqlite" driver.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, &cfg))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	if path == memoryPath {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := applyPragmas(db, &cfg); err != nil {
		db.Close()
		return nil, err
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing and registers
// t.Cleanup to close it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dsn(path string, cfg *config) string {
	if path == memoryPath {
		return path
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", cfg.synchronous))
	return "file:" + path + "?" + q.Encode()
}

func applyPragmas(db *sql.DB, cfg *config) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}
	return nil
}
