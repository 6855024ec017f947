package tracker

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	dir := t.TempDir()
	return New(Options{
		SessionDir:  filepath.Join(dir, "sessions"),
		HistoryPath: filepath.Join(dir, "history.jsonl"),
	})
}

func TestSessionID_DeterministicOnSameInputs(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := SessionID(1234, "/dev/pts/3", ts)
	b := SessionID(1234, "/dev/pts/3", ts)
	if a != b {
		t.Fatalf("expected SessionID to be deterministic for identical inputs")
	}
	if c := SessionID(1234, "/dev/pts/4", ts); c == a {
		t.Fatalf("expected a different tty to change the session id")
	}
}

func TestNewEphemeralSessionID_NotReproducible(t *testing.T) {
	a := NewEphemeralSessionID()
	b := NewEphemeralSessionID()
	if a == b {
		t.Fatalf("expected two ephemeral session ids to differ")
	}
	if len(a) == 0 {
		t.Fatalf("expected a non-empty ephemeral session id")
	}
}

func TestLoadSession_AutoCreatesOnFirstUse(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	st := tr.LoadSession("session-a", now)
	if st.SessionID != "session-a" {
		t.Fatalf("expected session id echoed back, got %q", st.SessionID)
	}
	if tr.SessionCount(st, "DCG-001") != 0 {
		t.Fatalf("expected 0 occurrences for a fresh session")
	}
}

func TestRecordOccurrence_PersistsAcrossLoad(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	st := tr.LoadSession("session-b", now)
	tr.RecordOccurrence(st, "DCG-001", now)
	tr.RecordOccurrence(st, "DCG-001", now)

	reloaded := tr.LoadSession("session-b", now)
	if got := tr.SessionCount(reloaded, "DCG-001"); got != 2 {
		t.Fatalf("expected 2 occurrences persisted, got %d", got)
	}
}

func TestAppendHistory_AndHistoryCount(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		rec := HistoryRecord{
			SchemaVersion: HistorySchemaVersion,
			Timestamp:     now.Add(time.Duration(i) * time.Minute),
			RuleID:        "DCG-001",
			PackID:        "core.filesystem",
			CommandHash:   "abc",
			Severity:      "high",
			Decision:      "deny",
			SessionID:     "s1",
			Cwd:           "/repo",
		}
		if err := tr.AppendHistory(rec); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}
	// A record for a different rule shouldn't be counted.
	if err := tr.AppendHistory(HistoryRecord{Timestamp: now, RuleID: "DCG-002", Decision: "deny", Cwd: "/repo"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	count := tr.HistoryCount("DCG-001", time.Hour, now.Add(5*time.Minute), "/repo", true)
	if count != 3 {
		t.Fatalf("expected 3 matching history records within window, got %d", count)
	}

	count = tr.HistoryCount("DCG-001", time.Millisecond, now.Add(5*time.Minute), "/repo", true)
	if count != 0 {
		t.Fatalf("expected 0 matches outside a tiny window, got %d", count)
	}
}

func TestHistoryCount_ProjectScopingFiltersOtherCwds(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()

	if err := tr.AppendHistory(HistoryRecord{Timestamp: now, RuleID: "DCG-001", Decision: "deny", Cwd: "/repo-a"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := tr.AppendHistory(HistoryRecord{Timestamp: now, RuleID: "DCG-001", Decision: "deny", Cwd: "/repo-b"}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	if got := tr.HistoryCount("DCG-001", time.Hour, now, "/repo-a", true); got != 1 {
		t.Fatalf("expected project-scoped count to see only /repo-a's record, got %d", got)
	}
	if got := tr.HistoryCount("DCG-001", time.Hour, now, "/repo-a", false); got != 2 {
		t.Fatalf("expected global-scoped count to see both projects' records, got %d", got)
	}
}

func TestPruneSessions_RemovesStaleOnly(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()

	fresh := tr.LoadSession("fresh", now)
	tr.RecordOccurrence(fresh, "DCG-001", now)

	stale := tr.LoadSession("stale", now.Add(-48*time.Hour))
	tr.RecordOccurrence(stale, "DCG-001", now.Add(-48*time.Hour))

	tr.PruneSessions(24*time.Hour, now)

	if got := tr.SessionCount(tr.LoadSession("fresh", now), "DCG-001"); got != 1 {
		t.Fatalf("expected fresh session to survive pruning, got count %d", got)
	}
	if got := tr.SessionCount(tr.LoadSession("stale", now), "DCG-001"); got != 0 {
		t.Fatalf("expected stale session to have been pruned (reset to 0), got count %d", got)
	}
}

func TestPruneHistory_DropsOldAndCapsEntries(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()

	old := HistoryRecord{Timestamp: now.Add(-48 * time.Hour), RuleID: "DCG-001", Decision: "deny"}
	if err := tr.AppendHistory(old); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	for i := 0; i < 5; i++ {
		rec := HistoryRecord{Timestamp: now.Add(time.Duration(i) * time.Second), RuleID: "DCG-001", Decision: "deny"}
		if err := tr.AppendHistory(rec); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	if err := tr.PruneHistory(24*time.Hour, 3, now.Add(time.Hour)); err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}

	count := tr.HistoryCount("DCG-001", 48*time.Hour, now.Add(time.Hour), "", false)
	if count != 3 {
		t.Fatalf("expected prune to cap history at 3 entries, got %d", count)
	}
}

func TestHistoryPath_ReturnsResolvedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.jsonl")
	tr := New(Options{HistoryPath: path})
	if got := tr.HistoryPath(); got != path {
		t.Fatalf("expected HistoryPath() to return %q, got %q", path, got)
	}
}
