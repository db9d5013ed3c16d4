// Package journal persists link events in a SQLite database so they can be
// listed after the process that produced them has exited.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	type      TEXT NOT NULL,
	severity  INTEGER NOT NULL,
	instance  TEXT NOT NULL,
	details   BLOB
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_instance ON events(instance);
`

// Entry is one stored event.
type Entry struct {
	ID        string            `json:"id" yaml:"id"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Type      audit.EventType   `json:"type" yaml:"type"`
	Severity  audit.Severity    `json:"severity" yaml:"severity"`
	Instance  string            `json:"instance" yaml:"instance"`
	Details   map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Filter selects entries in Query. Zero fields match everything.
type Filter struct {
	Type     audit.EventType
	Instance string
	Since    time.Time
	Limit    int
}

// Journal is a SQLite-backed audit.EventEmitter.
type Journal struct {
	db *sql.DB
}

// DefaultPath returns $XDG_DATA_HOME/<app>/journal.db, falling back to ~/.local/share.
func DefaultPath(app string) string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, app, "journal.db")
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// WAL lets `ipcctl events` read while a running link is writing.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure journal (%s): %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Emit stores ev. Details are kept as a CBOR map.
func (j *Journal) Emit(ev audit.Event) error {
	var details []byte
	if len(ev.Details) > 0 {
		data, err := cbor.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		details = data
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO events (id, timestamp, type, severity, instance, details) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ts.UnixNano(), string(ev.Type), int(ev.Severity), ev.Instance, details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (j *Journal) Query(filter Filter) ([]Entry, error) {
	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Instance != "" {
		conditions = append(conditions, "instance = ?")
		args = append(args, filter.Instance)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT id, timestamp, type, severity, instance, details FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			ts       int64
			typ      string
			severity int
			details  []byte
		)
		if err := rows.Scan(&e.ID, &ts, &typ, &severity, &e.Instance, &details); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		e.Type = audit.EventType(typ)
		e.Severity = audit.Severity(severity)
		if len(details) > 0 {
			if err := cbor.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details of event %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than before and returns how many were removed.
func (j *Journal) Prune(before time.Time) (int64, error) {
	result, err := j.db.Exec(`DELETE FROM events WHERE timestamp < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return result.RowsAffected()
}
