// Package eventlog records fetch, extraction and sampling events in a
// DuckDB file. The log is an audit trail only: cache completeness is always
// decided by the month manifests, never by this database.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

// Event types.
const (
	EventDownloadStart = "download_start"
	EventDownloadEnd   = "download_end"
	EventExtractStart  = "extract_start"
	EventExtractEnd    = "extract_end"
	EventSampleStart   = "sample_start"
	EventSampleEnd     = "sample_end"
	EventSkip          = "skip"
	EventError         = "error"
)

// Subject kinds.
const (
	KindArchive = "archive"
	KindMonth   = "month"
	KindRange   = "range"
)

const schemaSQL = `
CREATE SEQUENCE IF NOT EXISTS trip_event_log_id_seq;
CREATE TABLE IF NOT EXISTS trip_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('trip_event_log_id_seq'),
    subject         VARCHAR NOT NULL,      -- archive name, yyyy-mm, or range
    kind            VARCHAR NOT NULL,      -- 'archive', 'month', 'range'
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    source_url      VARCHAR,
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_trip_event_log_subject ON trip_event_log (subject, kind);
CREATE INDEX IF NOT EXISTS idx_trip_event_log_event_time ON trip_event_log (event, event_timestamp);
`

// Log is a nil-safe event recorder. A nil *Log silently drops every event so
// callers never need to branch on whether auditing is enabled.
type Log struct {
	db *sql.DB
}

// Open creates (if needed) and opens the event database.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create event log directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		db.Close()
		return nil, fmt.Errorf("initialise event log schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record inserts one event. Errors are returned but callers on hot paths
// typically ignore them: a failed audit write must not fail a fetch.
func (l *Log) Record(ctx context.Context, subject, kind, event, sourceURL, message string, duration *time.Duration) error {
	if l == nil || l.db == nil {
		return nil
	}
	var durationMs sql.NullInt64
	if duration != nil {
		durationMs = sql.NullInt64{Int64: duration.Milliseconds(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO trip_event_log (subject, kind, event, event_timestamp, source_url, message, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?);`,
		subject,
		kind,
		event,
		time.Now().UTC(),
		sql.NullString{String: sourceURL, Valid: sourceURL != ""},
		sql.NullString{String: message, Valid: message != ""},
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("log event %q for %q: %w", event, subject, err)
	}
	return nil
}

// Entry is one row of the event history.
type Entry struct {
	Subject    string
	Kind       string
	Event      string
	Timestamp  time.Time
	SourceURL  string
	Message    string
	DurationMS int64 // -1 when unset
}

// History returns the most recent entries, newest first, optionally filtered
// by kind and/or event.
func (l *Log) History(ctx context.Context, kindFilter, eventFilter string, limit int) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}

	query := `
        SELECT subject, kind, event, event_timestamp, source_url, message, duration_ms
        FROM trip_event_log`
	var conditions []string
	var args []any
	arg := 1
	if kindFilter != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", arg))
		args = append(args, kindFilter)
		arg++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", arg))
		args = append(args, eventFilter)
		arg++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", arg)
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var source, message sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&e.Subject, &e.Kind, &e.Event, &e.Timestamp, &source, &message, &durationMs); err != nil {
			return nil, fmt.Errorf("scan event history row: %w", err)
		}
		e.SourceURL = source.String
		e.Message = message.String
		e.DurationMS = -1
		if durationMs.Valid {
			e.DurationMS = durationMs.Int64
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event history rows: %w", err)
	}
	return entries, nil
}
