// Package progress persists the last prompt and result snapshot per
// (identity, domain) and serves them over a session-gated JSON API.
//
// Store owns the SQLite table, Handler exposes GET/POST /api/progress, and
// Client is the matching HTTP client used by the explorer.
package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/progsync/dbopen"
)

// Schema creates the progress table. One row per (user_id, domain).
const Schema = `
CREATE TABLE IF NOT EXISTS progress (
    user_id    TEXT NOT NULL,
    domain     TEXT NOT NULL,
    prompt     TEXT,
    payload    TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, domain)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(user_id, updated_at DESC);
`

// Store reads and writes progress records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock sets the clock used for timestamps (tests).
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store and applies Schema.
func NewStore(db *sql.DB, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("progress: DB is required")
	}
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("progress schema: %w", err)
		}
	}
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Get returns the record for (identity, domain). A pair that was never
// written yields a Record with only Domain set and a nil error.
func (s *Store) Get(ctx context.Context, identity string, domain Domain) (Record, error) {
	if identity == "" {
		return Record{}, ErrUnauthorized
	}
	if err := domain.Validate(); err != nil {
		return Record{}, err
	}

	var (
		prompt    sql.NullString
		raw       string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt, payload, updated_at FROM progress WHERE user_id = ? AND domain = ?`,
		identity, string(domain),
	).Scan(&prompt, &raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{Domain: domain}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("progress: get %s: %w", domain, err)
	}
	return decodeRow(domain, prompt, raw, updatedAt)
}

// Upsert creates or fully overwrites the record for (identity, domain) and
// returns the stored row. payload must already be validated; Upsert
// validates again so that direct callers cannot persist invalid data.
func (s *Store) Upsert(ctx context.Context, identity string, domain Domain, prompt *string, payload Payload) (Record, error) {
	if identity == "" {
		return Record{}, ErrUnauthorized
	}
	if err := domain.Validate(); err != nil {
		return Record{}, err
	}
	if err := payload.Validate(); err != nil {
		return Record{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("progress: encode payload: %w", err)
	}

	var p sql.NullString
	if prompt != nil {
		p = sql.NullString{String: *prompt, Valid: true}
	}
	now := s.now().UnixMilli()

	var (
		outPrompt sql.NullString
		outRaw    string
		updatedAt int64
	)
	err = dbopen.Retry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO progress (user_id, domain, prompt, payload, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, domain) DO UPDATE SET
			     prompt = excluded.prompt,
			     payload = excluded.payload,
			     updated_at = excluded.updated_at
			 RETURNING prompt, payload, updated_at`,
			identity, string(domain), p, string(data), now, now,
		).Scan(&outPrompt, &outRaw, &updatedAt)
	})
	if err != nil {
		return Record{}, fmt.Errorf("progress: upsert %s: %w", domain, err)
	}
	return decodeRow(domain, outPrompt, outRaw, updatedAt)
}

func decodeRow(domain Domain, prompt sql.NullString, raw string, updatedAt int64) (Record, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, domain, err)
	}
	if payload.Items == nil {
		payload.Items = []Insight{}
	}
	rec := Record{Domain: domain, Payload: &payload}
	if prompt.Valid {
		v := prompt.String
		rec.Prompt = &v
	}
	t := time.UnixMilli(updatedAt).UTC()
	rec.UpdatedAt = &t
	return rec, nil
}
