// Package tracker implements the Occurrence Tracker (spec.md §4.7):
// session-scoped and cross-session history counters feeding graduated
// response. Grounded on the teacher's internal/core/session.go
// (ResumeSession auto-create-on-first-use, GarbageCollectStaleSessions
// age-based pruning idiom) — generalized from a SQLite session table
// keyed by (agent_name, project_path) to a file-per-session JSON store
// keyed by the spec's sha256(ppid||tty||start_ts) session identity,
// since the spec has no multi-approver database to share.
package tracker

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistoryAge is the default retention window for history.jsonl
// entries (spec.md §4.7 "default 30d").
const DefaultMaxHistoryAge = 30 * 24 * time.Hour

// DefaultMaxHistoryEntries bounds history.jsonl size (spec.md §4.7 "default 10000").
const DefaultMaxHistoryEntries = 10000

// SessionID derives the spec's session identity (spec.md §4.7).
func SessionID(ppid int, tty string, startTS time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", ppid, tty, startTS.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// NewEphemeralSessionID mints a random session identity for callers that
// cannot resolve a controlling tty (spec.md §4.7's ppid||tty||start_ts
// hash degenerates when tty is unknown, e.g. stdin redirected from a
// pipe with no /proc/self/fd/0 symlink). Unlike SessionID this is not
// content-addressed and will not reproduce across invocations, so
// session-scoped occurrence counts reset each time it's used — acceptable
// since there is no stable parent shell to key off of in the first place.
func NewEphemeralSessionID() string {
	return uuid.NewString()
}

// SessionState is the on-disk per-session counter file.
type SessionState struct {
	SessionID    string         `json:"session_id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	Occurrences  map[string]int `json:"occurrences"` // rule_id -> count
}

// HistorySchemaVersion is the current schema_version stamped onto every
// HistoryRecord appended by this build.
const HistorySchemaVersion = 1

// HistoryRecord is one append-only cross-session observation (spec.md §3's
// exact data model: schema_version, timestamp, rule_id, pack_id, severity,
// response_level, session_id, cwd, command_hash, allowed).
type HistoryRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	RuleID        string    `json:"rule_id"`
	PackID        string    `json:"pack_id"`
	Severity      string    `json:"severity"`
	Decision      string    `json:"response_level"` // warning/soft_block/hard_block
	SessionID     string    `json:"session_id"`
	Cwd           string    `json:"cwd"`
	CommandHash   string    `json:"command_hash"`
	Allowed       bool      `json:"allowed"`
}

// Tracker bundles the session store and the history log. Both paths are
// resolved once at construction; all operations below are best-effort
// and fail open per spec.md §4.8.2.
type Tracker struct {
	sessionDir  string
	historyPath string
}

// Options configures a Tracker's file locations and overrides useful in
// tests (spec.md leaves paths to the implementation; defaults below).
type Options struct {
	SessionDir  string // default /tmp/dcg-sessions
	HistoryPath string // default ~/.config/dcg/history.jsonl
}

// New returns a Tracker, filling unset Options with spec defaults.
func New(opts Options) *Tracker {
	if opts.SessionDir == "" {
		opts.SessionDir = filepath.Join(os.TempDir(), "dcg-sessions")
	}
	if opts.HistoryPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HistoryPath = filepath.Join(home, ".config", "dcg", "history.jsonl")
		} else {
			opts.HistoryPath = filepath.Join(os.TempDir(), "dcg", "history.jsonl")
		}
	}
	return &Tracker{sessionDir: opts.SessionDir, historyPath: opts.HistoryPath}
}

// HistoryPath returns the resolved history.jsonl location, for callers
// (e.g. `dcg watch`) that need to tail the file directly rather than
// through Tracker's own read methods.
func (t *Tracker) HistoryPath() string {
	return t.historyPath
}

func (t *Tracker) sessionPath(sessionID string) string {
	return filepath.Join(t.sessionDir, sessionID+".json")
}

// LoadSession reads the session file, auto-creating an empty state if it
// does not exist (spec.md §4.7 "Auto-create on first destructive match").
// Read/parse errors are treated as a fresh session (fail-open).
func (t *Tracker) LoadSession(sessionID string, now time.Time) *SessionState {
	data, err := os.ReadFile(t.sessionPath(sessionID))
	if err != nil {
		return &SessionState{SessionID: sessionID, CreatedAt: now, LastActiveAt: now, Occurrences: map[string]int{}}
	}
	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return &SessionState{SessionID: sessionID, CreatedAt: now, LastActiveAt: now, Occurrences: map[string]int{}}
	}
	if st.Occurrences == nil {
		st.Occurrences = map[string]int{}
	}
	return &st
}

// SessionCount returns occurrences[ruleID] for the current session
// (spec.md §4.7 "Counters").
func (t *Tracker) SessionCount(st *SessionState, ruleID string) int {
	return st.Occurrences[ruleID]
}

// RecordOccurrence increments the session's counter for ruleID and
// persists the updated state with 0600 permissions (spec.md §4.7).
// Write failures are swallowed: per spec.md §4.8.2, stateful-store
// writes are best-effort and never block a Deny from being reported.
func (t *Tracker) RecordOccurrence(st *SessionState, ruleID string, now time.Time) {
	st.LastActiveAt = now
	st.Occurrences[ruleID]++
	_ = t.saveSession(st)
}

func (t *Tracker) saveSession(st *SessionState) error {
	if err := os.MkdirAll(t.sessionDir, 0700); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := t.sessionPath(st.SessionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, t.sessionPath(st.SessionID))
}

// AppendHistory appends one HistoryRecord to history.jsonl as a single
// <bytes>\n write (spec.md §5 "Append... is a single write").
func (t *Tracker) AppendHistory(rec HistoryRecord) error {
	if err := os.MkdirAll(filepath.Dir(t.historyPath), 0700); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling history record: %w", err)
	}
	f, err := os.OpenFile(t.historyPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening history log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// HistoryCount implements spec.md §4.7's history_count(rule_id, window):
// the number of HistoryRecords within [now-window, now] matching rule_id.
// When projectScoped is true, a record must additionally match cwd
// (spec.md §9 Open Question (b), decided per-project — see DESIGN.md);
// when false, graduation counts every matching record regardless of cwd.
// Read/parse errors yield 0 (fail-open); malformed lines are skipped.
func (t *Tracker) HistoryCount(ruleID string, window time.Duration, now time.Time, cwd string, projectScoped bool) int {
	f, err := os.Open(t.historyPath)
	if err != nil {
		return 0
	}
	defer f.Close()

	cutoff := now.Add(-window)
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.RuleID != ruleID {
			continue
		}
		if projectScoped && rec.Cwd != cwd {
			continue
		}
		if rec.Timestamp.Before(cutoff) || rec.Timestamp.After(now) {
			continue
		}
		count++
	}
	return count
}

// PruneSessions removes session files whose last_active_at is older than
// maxAge (spec.md §4.7 "Prune expired sessions on startup"). Best-effort:
// individual stat/remove errors are skipped, not fatal.
func (t *Tracker) PruneSessions(maxAge time.Duration, now time.Time) {
	entries, err := os.ReadDir(t.sessionDir)
	if err != nil {
		return
	}
	cutoff := now.Add(-maxAge)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(t.sessionDir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var st SessionState
		if err := json.Unmarshal(data, &st); err != nil {
			_ = os.Remove(path) // unreadable session state, drop it
			continue
		}
		if st.LastActiveAt.Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}

// PruneHistory rewrites history.jsonl keeping only entries within maxAge
// and at most maxEntries (most recent kept), per spec.md §4.7
// "Maintenance". Uses a temp-file + rename, matching the compaction
// discipline used elsewhere in the stateful stores (spec.md §5).
func (t *Tracker) PruneHistory(maxAge time.Duration, maxEntries int, now time.Time) error {
	f, err := os.Open(t.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := now.Add(-maxAge)
	var kept []HistoryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	f.Close()

	sort.Slice(kept, func(i, j int) bool { return kept[i].Timestamp.Before(kept[j].Timestamp) })
	if len(kept) > maxEntries {
		kept = kept[len(kept)-maxEntries:]
	}

	tmp := t.historyPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, rec := range kept {
		line, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, t.historyPath)
}
