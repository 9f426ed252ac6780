package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    event      TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    checksum   TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_events_key ON cache_events(namespace, key);
CREATE INDEX IF NOT EXISTS idx_cache_events_created ON cache_events(created_at);
`

// Event is one recorded cache lifecycle transition.
type Event struct {
	ID        int64
	Namespace string
	Key       string
	Event     string
	SizeBytes int64
	Checksum  string
	CreatedAt time.Time
}

// Ledger is an append-mostly event store. Safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema. WAL mode
// keeps concurrent writers from one process and readers from another happy on
// a local filesystem.
func Open(path string) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create database dir: %w", err)
	}

	dsn := "file:" + url.PathEscape(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one event.
func (l *Ledger) Record(ctx context.Context, namespace, key, event string, sizeBytes int64, checksum string) error {
	const insert = `INSERT INTO cache_events (namespace, key, event, size_bytes, checksum, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	return l.execRetry(ctx, insert,
		namespace, key, event, sizeBytes, checksum, time.Now().UTC().Format(time.RFC3339Nano))
}

// List returns the most recent events, newest first. A non-positive limit
// defaults to 50.
func (l *Ledger) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, namespace, key, event, size_bytes, checksum, created_at
FROM cache_events ORDER BY id DESC LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var created string
		if err := rows.Scan(&ev.ID, &ev.Namespace, &ev.Key, &ev.Event, &ev.SizeBytes, &ev.Checksum, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan event: %w", err)
		}
		ev.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("ledger: parse event timestamp %q: %w", created, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate events: %w", err)
	}
	return events, nil
}

// Prune deletes events older than the retention window and reports how many
// rows went.
func (l *Ledger) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `DELETE FROM cache_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ledger: prune events: %w", err)
	}
	return res.RowsAffected()
}

// execRetry retries briefly on SQLITE_BUSY; the busy_timeout pragma handles
// most contention, this covers the rest.
func (l *Ledger) execRetry(ctx context.Context, query string, args ...any) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = l.db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	if err != nil {
		return fmt.Errorf("ledger: exec: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
