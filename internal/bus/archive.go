package bus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"autonomy/internal/logging"
	"autonomy/internal/model"
)

// HistoryArchive is an optional durable sink for bus history entries
// evicted from the in-memory ring. It is not on the hot path; Publish
// keeps working identically with or without one attached.
type HistoryArchive struct {
	db *sql.DB
}

// OpenHistoryArchive opens (creating if absent) a SQLite-backed archive
// at <dir>/history.db, next to the live ring's history.json dump.
func OpenHistoryArchive(dir string) (*HistoryArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bus: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "history.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.BusDebug("history archive: busy_timeout pragma failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.BusDebug("history archive: journal_mode=WAL pragma failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.BusDebug("history archive: synchronous=NORMAL pragma failed: %v", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS evicted_messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	type       TEXT NOT NULL,
	priority   TEXT NOT NULL,
	payload    TEXT,
	timestamp  DATETIME NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bus: init schema: %w", err)
	}

	return &HistoryArchive{db: db}, nil
}

// Record appends one evicted message. Failures are logged, not returned,
// since the archive is best-effort overflow, not the durability
// boundary (state.json remains authoritative).
func (a *HistoryArchive) Record(m model.Message) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		payload = []byte("null")
	}
	_, err = a.db.Exec(
		`INSERT INTO evicted_messages (id, sender, recipient, type, priority, payload, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Sender), m.Recipient, string(m.Type), string(m.Priority), string(payload), m.Timestamp,
	)
	if err != nil {
		logging.Get(logging.CategoryBus).Warn("history archive: record failed for %s: %v", m.ID, err)
	}
}

// Count returns the number of archived messages, mainly for tests and
// diagnostics.
func (a *HistoryArchive) Count() (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM evicted_messages`).Scan(&n)
	return n, err
}

// Close releases the underlying database handle.
func (a *HistoryArchive) Close() error {
	return a.db.Close()
}

// AttachArchive wires an overflow archive into the bus: every eviction
// is additionally persisted there before being dropped from memory.
func (b *Bus) AttachArchive(a *HistoryArchive) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.archive = a
}
