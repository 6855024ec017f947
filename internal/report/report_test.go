package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dicklesworthstone/dcg/internal/tracker"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeHistoryFile(t *testing.T, recs []tracker.HistoryRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return path
}

func TestOpen_CreatesSchemaAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening an existing report db should succeed: %v", err)
	}
	defer db2.Close()
	if db2.Path() != path {
		t.Fatalf("expected Path() to return %q, got %q", path, db2.Path())
	}
}

func TestRebuildFromJSONL_MissingFileIsNotAnError(t *testing.T) {
	db := openTestDB(t)
	n, err := db.RebuildFromJSONL(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	if err != nil {
		t.Fatalf("expected no error for a missing history file, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 records, got %d", n)
	}
}

func TestRebuildFromJSONL_InsertsAllRecordsAndSkipsMalformedLines(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []tracker.HistoryRecord{
		{SchemaVersion: 1, Timestamp: now, RuleID: "core.filesystem:rm-root", CommandHash: "h1", Severity: "critical", Decision: "hard_block"},
		{SchemaVersion: 1, Timestamp: now.Add(time.Minute), RuleID: "core.filesystem:rm-root", CommandHash: "h2", Severity: "critical", Decision: "hard_block"},
		{SchemaVersion: 1, Timestamp: now.Add(2 * time.Minute), RuleID: "core.git:push-force", CommandHash: "h3", Severity: "critical", Decision: "soft_block"},
	}
	path := writeHistoryFile(t, recs)

	// Append a malformed trailing line directly; readAllHistory must skip it.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("not json\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	db := openTestDB(t)
	n, err := db.RebuildFromJSONL(context.Background(), path)
	if err != nil {
		t.Fatalf("RebuildFromJSONL: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 valid records ingested, got %d", n)
	}
}

func TestRebuildFromJSONL_TruncatesPreviousContents(t *testing.T) {
	now := time.Now()
	db := openTestDB(t)

	first := writeHistoryFile(t, []tracker.HistoryRecord{
		{Timestamp: now, RuleID: "a", Severity: "low", Decision: "warning"},
		{Timestamp: now, RuleID: "b", Severity: "low", Decision: "warning"},
	})
	if _, err := db.RebuildFromJSONL(context.Background(), first); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}

	second := writeHistoryFile(t, []tracker.HistoryRecord{
		{Timestamp: now, RuleID: "c", Severity: "low", Decision: "warning"},
	})
	n, err := db.RebuildFromJSONL(context.Background(), second)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the second rebuild to report 1 record, got %d", n)
	}

	recs, err := db.Query("", now.Add(-time.Hour), 100)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recs) != 1 || recs[0].RuleID != "c" {
		t.Fatalf("expected only the second rebuild's record to remain, got %+v", recs)
	}
}

func TestTopRules_OrdersByCountDescendingAndRespectsSince(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []tracker.HistoryRecord{
		{Timestamp: now.Add(-48 * time.Hour), RuleID: "old-rule", Severity: "low", Decision: "warning"},
		{Timestamp: now, RuleID: "rule-a", Severity: "high", Decision: "soft_block"},
		{Timestamp: now, RuleID: "rule-a", Severity: "high", Decision: "soft_block"},
		{Timestamp: now, RuleID: "rule-b", Severity: "high", Decision: "soft_block"},
	}
	path := writeHistoryFile(t, recs)
	db := openTestDB(t)
	if _, err := db.RebuildFromJSONL(context.Background(), path); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	top, err := db.TopRules(now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("TopRules: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected old-rule excluded by since, got %+v", top)
	}
	if top[0].RuleID != "rule-a" || top[0].Count != 2 {
		t.Fatalf("expected rule-a first with count 2, got %+v", top[0])
	}
}

func TestQuery_FiltersByRuleIDAndOrdersMostRecentFirst(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []tracker.HistoryRecord{
		{Timestamp: now, RuleID: "rule-a", CommandHash: "h1", Severity: "high", Decision: "soft_block"},
		{Timestamp: now.Add(time.Minute), RuleID: "rule-a", CommandHash: "h2", Severity: "high", Decision: "soft_block"},
		{Timestamp: now.Add(2 * time.Minute), RuleID: "rule-b", CommandHash: "h3", Severity: "low", Decision: "warning"},
	}
	path := writeHistoryFile(t, recs)
	db := openTestDB(t)
	if _, err := db.RebuildFromJSONL(context.Background(), path); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	out, err := db.Query("rule-a", now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows for rule-a, got %d", len(out))
	}
	if out[0].CommandHash != "h2" {
		t.Fatalf("expected most-recent-first ordering, got %+v", out)
	}
	if out[0].SchemaVersion != tracker.HistorySchemaVersion {
		t.Fatalf("expected SchemaVersion stamped on query results, got %d", out[0].SchemaVersion)
	}

	limited, err := db.Query("", now.Add(-time.Hour), 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit=1 respected, got %d rows", len(limited))
	}
}

func TestQuery_RoundTripsPackIDSessionIDCwdAndAllowed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []tracker.HistoryRecord{
		{
			Timestamp:   now,
			RuleID:      "core.filesystem:rm-root",
			PackID:      "core.filesystem",
			CommandHash: "h1",
			Severity:    "critical",
			Decision:    "warning",
			SessionID:   "s1",
			Cwd:         "/repo-a",
			Allowed:     true,
		},
	}
	path := writeHistoryFile(t, recs)
	db := openTestDB(t)
	if _, err := db.RebuildFromJSONL(context.Background(), path); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	out, err := db.Query("core.filesystem:rm-root", now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	got := out[0]
	if got.PackID != "core.filesystem" || got.SessionID != "s1" || got.Cwd != "/repo-a" || !got.Allowed {
		t.Fatalf("expected pack_id/session_id/cwd/allowed to round-trip through sqlite, got %+v", got)
	}
}
