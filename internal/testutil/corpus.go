package testutil

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ExpectedLog is the canonical corpus entry's "what the trace/decision
// must show" block (spec.md §6 "Canonical corpus format"). Every field
// is optional: an empty string means "don't assert this field".
type ExpectedLog struct {
	Decision       string `toml:"decision"`
	PackID         string `toml:"pack_id"`
	PatternName    string `toml:"pattern_name"`
	RuleID         string `toml:"rule_id"`
	Mode           string `toml:"mode"`
	Source         string `toml:"source"` // pack | heredoc_ast | config_override | legacy_pattern
	ReasonContains string `toml:"reason_contains"`
}

// CanonicalEntry is one row of the canonical corpus (spec.md §6, §8). The
// first group of fields is the spec's literal tuple; the second group
// (SessionInvocations, AllowlistTOML, PendingSetup, PendingSingleUse) are
// harness-only extensions this loader adds to express the stateful setup
// several of §8's literal scenarios require (repeated invocations in one
// session, a project allowlist file, a pre-existing PendingException) —
// a single stateless (command, expected_decision) tuple can't describe
// "the third time this command runs in a session" on its own.
type CanonicalEntry struct {
	ID               string      `toml:"id"`
	Category         string      `toml:"category"`
	InputKind        string      `toml:"input_kind"` // command | hook_json
	Command          string      `toml:"command"`
	RawInput         string      `toml:"raw_input"`
	ExpectedDecision string      `toml:"expected_decision"` // allow | warn | deny
	ExpectedLog      ExpectedLog `toml:"expected_log"`

	SessionInvocations int    `toml:"session_invocations"`
	AllowlistTOML      string `toml:"allowlist_toml"`
	PendingSetup       bool   `toml:"pending_setup"`
	PendingSingleUse   bool   `toml:"pending_single_use"`
	PendingReason      string `toml:"pending_reason"`
	Notes              string `toml:"notes"`
}

// Corpus is the top-level canonical.toml document.
type Corpus struct {
	Version int              `toml:"version"`
	Entries []CanonicalEntry `toml:"entry"`
}

// LoadCanonicalCorpus decodes a canonical corpus TOML file using the same
// BurntSushi/toml library internal/config and internal/allowlist decode
// with.
func LoadCanonicalCorpus(path string) (Corpus, error) {
	var c Corpus
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Corpus{}, fmt.Errorf("decode canonical corpus %s: %w", path, err)
	}
	if c.Version == 0 {
		return Corpus{}, fmt.Errorf("canonical corpus %s: missing or zero version", path)
	}
	for i, e := range c.Entries {
		if e.ID == "" {
			return Corpus{}, fmt.Errorf("canonical corpus %s: entry %d missing id", path, i)
		}
		if e.InputKind != "command" && e.InputKind != "hook_json" {
			return Corpus{}, fmt.Errorf("canonical corpus %s: entry %q has unrecognized input_kind %q", path, e.ID, e.InputKind)
		}
		if e.ExpectedDecision != "allow" && e.ExpectedDecision != "deny" && e.ExpectedDecision != "warn" {
			return Corpus{}, fmt.Errorf("canonical corpus %s: entry %q has unrecognized expected_decision %q", path, e.ID, e.ExpectedDecision)
		}
	}
	return c, nil
}
