// Package report implements a derived, rebuildable analytics index over
// history.jsonl (spec.md §4.7's canonical occurrence log), backing
// `dcg stats`. Query offers lookups by rule and time, but `dcg history
// query` scans history.jsonl directly and does not use this index.
//
// Grounded on `ry256-slb/internal/db/db.go`: modernc.org/sqlite (pure
// Go, no cgo) opened in WAL mode with the same pragma DSN shape, a
// mutex-guarded *sql.DB wrapper, and a migrations table for schema
// versioning. Unlike the teacher, this package is never the source of
// truth — history.jsonl is (spec.md §4.6, §4.7) — so there is no
// request/review/session schema to port, only a single denormalized
// table rebuilt wholesale from the JSONL log. `RebuildFromJSONL` is the
// only write path; nothing else ever calls Exec against the history
// table, which keeps the "rebuild from JSONL on demand" invariant from
// drifting.
package report

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dicklesworthstone/dcg/internal/tracker"
)

// SchemaVersion is bumped whenever the history table's columns change.
const SchemaVersion = 1

// DB wraps the derived sqlite index.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath is ~/.config/dcg/report.db, mirroring config.ConfigPaths's
// user-level directory (spec.md §6).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dcg", "report.db")
	}
	return filepath.Join(home, ".config", "dcg", "report.db")
}

// Open opens (creating if necessary) the sqlite index at path.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening report db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging report db: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the sqlite file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) initSchema() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     DATETIME NOT NULL,
	rule_id       TEXT NOT NULL,
	pack_id       TEXT NOT NULL,
	command_hash  TEXT NOT NULL,
	severity      TEXT NOT NULL,
	decision      TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	cwd           TEXT NOT NULL,
	allowed       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_rule_id ON history(rule_id);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
`)
	if err != nil {
		return fmt.Errorf("initializing report schema: %w", err)
	}
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.conn.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// RebuildFromJSONL truncates the history table and reinserts every
// record in historyPath, the only write path into this index. Safe to
// call repeatedly (e.g. before every `dcg stats` invocation): the
// rebuild cost is linear in history.jsonl's size, which spec.md §4.7
// already bounds via compaction.
func (db *DB) RebuildFromJSONL(ctx context.Context, historyPath string) (int, error) {
	records, err := readAllHistory(historyPath)
	if err != nil {
		return 0, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO history (timestamp, rule_id, pack_id, command_hash, severity, decision, session_id, cwd, allowed) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Timestamp, rec.RuleID, rec.PackID, rec.CommandHash, rec.Severity, rec.Decision, rec.SessionID, rec.Cwd, rec.Allowed); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func readAllHistory(path string) ([]tracker.HistoryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []tracker.HistoryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec tracker.HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// RuleCount is one row of a rule_id -> occurrence-count aggregate.
type RuleCount struct {
	RuleID string `json:"rule_id"`
	Count  int    `json:"count"`
}

// TopRules returns the limit most-frequently-denied/warned rule_ids
// since the given time, most frequent first. Backs `dcg stats`.
func (db *DB) TopRules(since time.Time, limit int) ([]RuleCount, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
SELECT rule_id, COUNT(*) AS cnt
FROM history
WHERE timestamp >= ?
GROUP BY rule_id
ORDER BY cnt DESC
LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RuleCount
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.RuleID, &rc.Count); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// Query returns history rows matching ruleID (empty matches all) at or
// after since, most recent first, capped at limit.
func (db *DB) Query(ruleID string, since time.Time, limit int) ([]tracker.HistoryRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	q := `SELECT timestamp, rule_id, pack_id, command_hash, severity, decision, session_id, cwd, allowed FROM history WHERE timestamp >= ?`
	args := []any{since}
	if ruleID != "" {
		q += ` AND rule_id = ?`
		args = append(args, ruleID)
	}
	q += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracker.HistoryRecord
	for rows.Next() {
		var rec tracker.HistoryRecord
		rec.SchemaVersion = tracker.HistorySchemaVersion
		if err := rows.Scan(&rec.Timestamp, &rec.RuleID, &rec.PackID, &rec.CommandHash, &rec.Severity, &rec.Decision, &rec.SessionID, &rec.Cwd, &rec.Allowed); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
