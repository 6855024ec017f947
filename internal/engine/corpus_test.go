package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dicklesworthstone/dcg/internal/allowlist"
	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/hookio"
	"github.com/dicklesworthstone/dcg/internal/pending"
	"github.com/dicklesworthstone/dcg/internal/testutil"
	"github.com/dicklesworthstone/dcg/internal/tracker"
)

// TestCanonicalCorpus drives every entry in tests/corpus/canonical.toml
// through Evaluate and checks its decision and trace against the entry's
// expected_log (spec.md §6 "Canonical corpus format", §8's nine literal
// end-to-end scenarios).
func TestCanonicalCorpus(t *testing.T) {
	corpus, err := testutil.LoadCanonicalCorpus(filepath.Join("..", "..", "tests", "corpus", "canonical.toml"))
	testutil.RequireNoError(t, err, "LoadCanonicalCorpus")
	testutil.RequireLen(t, corpus.Entries, 9, "expected all nine spec.md §8 end-to-end scenarios")

	for _, entry := range corpus.Entries {
		entry := entry
		t.Run(entry.ID, func(t *testing.T) {
			runCanonicalEntry(t, entry)
		})
	}
}

func runCanonicalEntry(t *testing.T, e testutil.CanonicalEntry) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cwd := "/repo"
	command := e.Command

	if e.InputKind == "hook_json" {
		env, ok := hookio.ParseEnvelope(strings.NewReader(e.RawInput))
		if !ok {
			testutil.RequireEqual(t, "allow", e.ExpectedDecision, e.ID+": envelope parse failure must fail open to allow")
			return
		}
		cmdStr, _ := env.Command.(string)
		command = cmdStr
		if env.Cwd != "" {
			cwd = env.Cwd
		}
	}

	deps := Dependencies{Catalog: catalog.DefaultCatalog()}

	if e.AllowlistTOML != "" {
		path := filepath.Join(t.TempDir(), "allowlist.toml")
		if err := os.WriteFile(path, []byte(e.AllowlistTOML), 0644); err != nil {
			t.Fatalf("%s: write allowlist fixture: %v", e.ID, err)
		}
		al, err := allowlist.Load(path, "", now)
		if err != nil {
			t.Fatalf("%s: allowlist.Load: %v", e.ID, err)
		}
		deps.Allowlist = al
	}

	store := pending.Open(filepath.Join(t.TempDir(), "pending_exceptions.jsonl"))
	if e.PendingSetup {
		exc := pending.New(now, cwd, command, "", e.PendingReason, e.PendingSingleUse, pending.DefaultTTL)
		if err := store.Append(exc); err != nil {
			t.Fatalf("%s: pending.Append: %v", e.ID, err)
		}
	}
	deps.Pending = store

	deps.Tracker = tracker.New(tracker.Options{
		SessionDir:  filepath.Join(t.TempDir(), "sessions"),
		HistoryPath: filepath.Join(t.TempDir(), "history.jsonl"),
	})

	opts := DefaultOptions()

	invocations := e.SessionInvocations
	if invocations < 1 {
		invocations = 1
	}

	var d Decision
	var trace Trace
	req := CommandRequest{RawCommand: command, Cwd: cwd, SessionID: "s1"}
	for i := 0; i < invocations; i++ {
		trace = Trace{}
		req.Now = now
		d = Evaluate(req, deps, opts, &trace)
	}

	assertCanonicalDecision(t, e, d, &trace)
}

func assertCanonicalDecision(t *testing.T, e testutil.CanonicalEntry, d Decision, trace *Trace) {
	t.Helper()
	switch e.ExpectedDecision {
	case "allow":
		a, ok := d.(Allow)
		if !ok {
			t.Fatalf("%s: expected Allow, got %#v", e.ID, d)
		}
		if want := e.ExpectedLog.ReasonContains; want != "" {
			if !strings.Contains(string(a.ReasonSource), want) && !strings.Contains(a.Reason, want) {
				t.Fatalf("%s: expected reason to contain %q, got source=%q reason=%q", e.ID, want, a.ReasonSource, a.Reason)
			}
		}
		if e.ExpectedLog.PackID != "" || e.ExpectedLog.PatternName != "" {
			want := e.ExpectedLog.PackID + ":" + e.ExpectedLog.PatternName
			if a.Reason != want {
				t.Fatalf("%s: expected safe-pattern reason %q, got %q", e.ID, want, a.Reason)
			}
		}
		if e.ExpectedLog.Source == "pack" && e.ExpectedLog.PatternName != "" {
			if a.ReasonSource != ReasonSafePattern {
				t.Fatalf("%s: expected ReasonSafePattern, got %q", e.ID, a.ReasonSource)
			}
		}

	case "warn":
		w, ok := d.(Warn)
		if !ok {
			t.Fatalf("%s: expected Warn, got %#v", e.ID, d)
		}
		if want := e.ExpectedLog.RuleID; want != "" && w.RuleID != want {
			t.Fatalf("%s: rule_id=%q want %q", e.ID, w.RuleID, want)
		}
		if want := e.ExpectedLog.Decision; want != "" && string(w.ResponseLevel) != want {
			t.Fatalf("%s: response_level=%q want %q", e.ID, w.ResponseLevel, want)
		}

	case "deny":
		deny, ok := d.(Deny)
		if !ok {
			t.Fatalf("%s: expected Deny, got %#v", e.ID, d)
		}
		if want := e.ExpectedLog.RuleID; want != "" && deny.RuleID != want {
			t.Fatalf("%s: rule_id=%q want %q", e.ID, deny.RuleID, want)
		}
		if want := e.ExpectedLog.PackID; want != "" && deny.PackID != want {
			t.Fatalf("%s: pack_id=%q want %q", e.ID, deny.PackID, want)
		}
		if want := e.ExpectedLog.Decision; want != "" && string(deny.ResponseLevel) != want {
			t.Fatalf("%s: response_level=%q want %q", e.ID, deny.ResponseLevel, want)
		}
		if deny.ResponseLevel == ResponseSoftBlock || deny.ResponseLevel == ResponseHardBlock {
			if deny.AllowOnceCode == "" {
				t.Fatalf("%s: expected a code to be minted for %s", e.ID, deny.ResponseLevel)
			}
		}
		if want := e.ExpectedLog.Source; want != "" {
			got := traceSource(trace, deny.RuleID)
			if got != want {
				t.Fatalf("%s: source=%q want %q", e.ID, got, want)
			}
		}

	default:
		t.Fatalf("%s: unrecognized expected_decision %q", e.ID, e.ExpectedDecision)
	}
}

// traceSource reports which pipeline stage produced the Deny matching
// ruleID, distinguishing a heredoc/inline sub-body match from a top-level
// one (spec.md §6 canonical corpus expected_log.source).
func traceSource(trace *Trace, ruleID string) string {
	if trace == nil {
		return ""
	}
	for _, s := range trace.Steps {
		switch v := s.(type) {
		case HeredocExtractStep:
			if v.SubTrace != nil && traceContainsMatch(v.SubTrace, ruleID) {
				return "heredoc_ast"
			}
		case PatternEvalStep:
			if v.Destructive && v.Matched && v.PackID+":"+v.PatternName == ruleID {
				return "pack"
			}
		}
	}
	return ""
}

func traceContainsMatch(trace *Trace, ruleID string) bool {
	for _, s := range trace.Steps {
		switch v := s.(type) {
		case PatternEvalStep:
			if v.Destructive && v.Matched && v.PackID+":"+v.PatternName == ruleID {
				return true
			}
		case HeredocExtractStep:
			if v.SubTrace != nil && traceContainsMatch(v.SubTrace, ruleID) {
				return true
			}
		}
	}
	return false
}
