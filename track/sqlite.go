package track

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteSchema creates the events table. Safe to apply repeatedly.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS events (
    id      TEXT PRIMARY KEY,
    kind    TEXT NOT NULL,
    at      TEXT NOT NULL,
    url     TEXT NOT NULL DEFAULT '',
    brand   TEXT NOT NULL DEFAULT '',
    score   INTEGER NOT NULL DEFAULT 0,
    payload TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_kind_at ON events(kind, at DESC);
`

// SQLite persists events in the cashpeek database, giving the settings
// UI a local history to render without any network dependency.
type SQLite struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

// SQLiteOption configures a SQLite sink.
type SQLiteOption func(*SQLite)

// WithSQLiteRetention caps event age; older rows are pruned
// opportunistically on insert. Default: 30 days. Zero disables pruning.
func WithSQLiteRetention(d time.Duration) SQLiteOption {
	return func(s *SQLite) { s.retention = d }
}

// WithSQLiteLogger sets a custom logger.
func WithSQLiteLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLite) { s.logger = l }
}

// NewSQLite creates a SQLite sink and applies its schema.
func NewSQLite(db *sql.DB, opts ...SQLiteOption) (*SQLite, error) {
	s := &SQLite{
		db:        db,
		retention: 30 * 24 * time.Hour,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.Exec(SQLiteSchema); err != nil {
		return nil, fmt.Errorf("track: apply schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Send(ctx context.Context, ev Event) error {
	var payload any
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("track: marshal payload: %w", err)
		}
		payload = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, kind, at, url, brand, score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.At.UTC().Format(time.RFC3339Nano),
		ev.URL, ev.Brand, ev.Score, payload)
	if err != nil {
		return fmt.Errorf("track: insert event: %w", err)
	}

	s.prune(ctx)
	return nil
}

// Recent returns up to limit events of a kind, newest first. Empty kind
// matches all.
func (s *SQLite) Recent(ctx context.Context, kind string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, kind, at, url, brand, score, COALESCE(payload, '') FROM events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("track: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var at, payload string
		if err := rows.Scan(&ev.ID, &ev.Kind, &at, &ev.URL, &ev.Brand, &ev.Score, &payload); err != nil {
			return nil, fmt.Errorf("track: scan event: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			ev.At = t
		}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
				s.logger.Warn("track: corrupt event payload", "id", ev.ID, "error", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) prune(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.retention).UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff); err != nil {
		s.logger.Debug("track: prune failed", "error", err)
	}
}

func (s *SQLite) Close() error { return nil }
