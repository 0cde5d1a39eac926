// Package store is the durable key-value layer behind cashpeek: user
// preferences and notification dismissal records, kept in SQLite so
// they survive across sessions and are shared by every page-view.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cashpeek/cashpeek/dbopen"
)

// Schema contains the complete DDL for the cashpeek tables.
const Schema = `
-- Single-row user preferences
CREATE TABLE IF NOT EXISTS preferences (
    id                  INTEGER PRIMARY KEY CHECK (id = 1),
    enabled             INTEGER NOT NULL DEFAULT 1,
    auto_show           INTEGER NOT NULL DEFAULT 1,
    min_confidence      INTEGER NOT NULL DEFAULT 0,
    blacklisted_domains TEXT NOT NULL DEFAULT '[]'
);
INSERT OR IGNORE INTO preferences (id) VALUES (1);

-- Dismissal records, keyed by the exact page URL
CREATE TABLE IF NOT EXISTS dismissals (
    url           TEXT PRIMARY KEY,
    dismissed_at  TEXT NOT NULL,
    brand         TEXT NOT NULL DEFAULT '',
    product_title TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dismissals_at ON dismissals(dismissed_at);
`

// Preferences are the user-facing switches read before any detection
// starts.
type Preferences struct {
	Enabled            bool     `json:"enabled"`
	AutoShow           bool     `json:"auto_show"`
	MinConfidence      int      `json:"min_confidence"`
	BlacklistedDomains []string `json:"blacklisted_domains"`
}

// DismissalRecord remembers that the user dismissed a notification on an
// exact URL. DismissedAt is stored as an ISO-8601 string.
type DismissalRecord struct {
	URL          string    `json:"url"`
	DismissedAt  time.Time `json:"dismissed_at"`
	Brand        string    `json:"brand"`
	ProductTitle string    `json:"product_title"`
}

// Store is the cashpeek database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// NewWithDB wraps an already opened database (tests use OpenMemory).
func NewWithDB(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Preferences loads the single preferences row.
func (s *Store) Preferences(ctx context.Context) (Preferences, error) {
	var (
		p                 Preferences
		enabled, autoShow int
		domains           string
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT enabled, auto_show, min_confidence, blacklisted_domains
		FROM preferences WHERE id = 1`).
		Scan(&enabled, &autoShow, &p.MinConfidence, &domains)
	if err != nil {
		return Preferences{}, fmt.Errorf("store: load preferences: %w", err)
	}
	p.Enabled = enabled != 0
	p.AutoShow = autoShow != 0
	if err := json.Unmarshal([]byte(domains), &p.BlacklistedDomains); err != nil {
		// A corrupt domain list falls back to no exclusions.
		p.BlacklistedDomains = nil
	}
	return p, nil
}

// SavePreferences overwrites the single preferences row.
func (s *Store) SavePreferences(ctx context.Context, p Preferences) error {
	domains, err := json.Marshal(p.BlacklistedDomains)
	if err != nil {
		return fmt.Errorf("store: marshal domains: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		UPDATE preferences
		SET enabled = ?, auto_show = ?, min_confidence = ?, blacklisted_domains = ?
		WHERE id = 1`,
		boolInt(p.Enabled), boolInt(p.AutoShow), p.MinConfidence, string(domains))
	if err != nil {
		return fmt.Errorf("store: save preferences: %w", err)
	}
	return nil
}

// Dismissal returns the record for an exact URL, or nil when none
// exists.
func (s *Store) Dismissal(ctx context.Context, url string) (*DismissalRecord, error) {
	var (
		rec DismissalRecord
		at  string
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT url, dismissed_at, brand, product_title
		FROM dismissals WHERE url = ?`, url).
		Scan(&rec.URL, &at, &rec.Brand, &rec.ProductTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load dismissal: %w", err)
	}

	rec.DismissedAt, err = time.Parse(time.RFC3339, at)
	if err != nil {
		return nil, fmt.Errorf("store: parse dismissed_at %q: %w", at, err)
	}
	return &rec, nil
}

// RecordDismissal upserts a dismissal keyed by the exact URL.
// Last-write-wins across tabs is acceptable for this record.
func (s *Store) RecordDismissal(ctx context.Context, rec DismissalRecord) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO dismissals (url, dismissed_at, brand, product_title)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			dismissed_at = excluded.dismissed_at,
			brand = excluded.brand,
			product_title = excluded.product_title`,
		rec.URL, rec.DismissedAt.UTC().Format(time.RFC3339), rec.Brand, rec.ProductTitle)
	if err != nil {
		return fmt.Errorf("store: record dismissal: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
