// Package hookio implements the PreToolUse hook's stdin envelope and
// stdout/exit-code contract (spec.md §6 "External interfaces").
//
// The shape is new (no teacher file parses a Claude Code hook envelope
// directly — the teacher's own hook integration shells out to a Python
// script and a daemon, see internal/cli/hook.go's runHookGenerate), but
// the "decode permissively, fail open on anything malformed, never
// panic" posture is grounded on the same file's runHookTest classify-
// and-report idiom, generalized to the engine's Decision/Trace types.
package hookio

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dicklesworthstone/dcg/internal/engine"
)

// ExitCode enumerates the hook's process exit codes (spec.md §6).
type ExitCode int

const (
	ExitAllow       ExitCode = 0
	ExitDeny        ExitCode = 1
	ExitWarn        ExitCode = 2
	ExitConfigError ExitCode = 3
	ExitParseError  ExitCode = 4
	ExitIOError     ExitCode = 5
)

// Envelope is the stdin JSON object Claude Code sends before running a
// tool. Unknown fields are ignored by json.Unmarshal's default behavior.
type Envelope struct {
	ToolName  string `json:"tool_name"`
	Command   any    `json:"command"`
	Cwd       string `json:"cwd"`
	SessionID string `json:"session_id"`
}

// ParseEnvelope decodes r as an Envelope. A malformed body or a non-string
// command field is not an error here: the caller is expected to treat
// both as "fail open, allow" per spec.md §6, so ParseEnvelope reports ok=false
// instead of an error the caller might be tempted to surface as a Deny.
func ParseEnvelope(r io.Reader) (env Envelope, ok bool) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Envelope{}, false
	}
	var raw struct {
		ToolName  string `json:"tool_name"`
		Command   any    `json:"command"`
		Cwd       string `json:"cwd"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, false
	}
	cmdStr, isString := raw.Command.(string)
	if !isString {
		return Envelope{}, false
	}
	return Envelope{
		ToolName:  raw.ToolName,
		Command:   cmdStr,
		Cwd:       raw.Cwd,
		SessionID: raw.SessionID,
	}, true
}

// Remediation is the hook output's nested "how to proceed" block.
type Remediation struct {
	AllowOnceCommand string `json:"allowOnceCommand,omitempty"`
	AllowlistCommand string `json:"allowlistCommand,omitempty"`
	ConfirmCommand   string `json:"confirmCommand,omitempty"`
	SafeAlternative  string `json:"safeAlternative,omitempty"`
}

// HookSpecificOutput is the payload nested under the stdout JSON's
// "hookSpecificOutput" key for a deny decision.
type HookSpecificOutput struct {
	HookEventName      string       `json:"hookEventName"`
	PermissionDecision string       `json:"permissionDecision"`
	ResponseLevel      string       `json:"responseLevel"`
	RuleID             string       `json:"ruleId"`
	SessionOccurrence  int          `json:"sessionOccurrence"`
	SessionThreshold   int          `json:"sessionThreshold"`
	HistoryOccurrence  int          `json:"historyOccurrence"`
	HistoryThreshold   int          `json:"historyThreshold"`
	AllowOnceCode      string       `json:"allowOnceCode,omitempty"`
	ConfirmCode        string       `json:"confirmCode,omitempty"`
	Remediation        Remediation  `json:"remediation"`
}

// Output is the full stdout document for a deny decision.
type Output struct {
	HookSpecificOutput HookSpecificOutput `json:"hookSpecificOutput"`
}

// Occurrences carries the session/history counts used to fill a deny
// payload's sessionOccurrence/historyOccurrence fields; the engine
// doesn't thread them back out of Decision, so the caller (internal/cli's
// runHook) re-reads them from the tracker after Evaluate returns.
type Occurrences struct {
	SessionCount     int
	SessionThreshold int
	HistoryCount     int
	HistoryThreshold int
}

// Render turns an engine.Decision into the hook's exit code and, for a
// Deny, the stdout JSON document plus a human-readable stderr box. Allow
// and Warn never produce stdout, matching spec.md §6 exactly.
func Render(d engine.Decision, occ Occurrences) (code ExitCode, stdout []byte, stderrBox string) {
	switch v := d.(type) {
	case engine.Allow:
		return ExitAllow, nil, ""
	case engine.Warn:
		box := warnBox(v)
		return ExitWarn, nil, box
	case engine.Deny:
		h := HookSpecificOutput{
			HookEventName:      "PreToolUse",
			PermissionDecision: "deny",
			ResponseLevel:      string(v.ResponseLevel),
			RuleID:             v.RuleID,
			SessionOccurrence:  occ.SessionCount,
			SessionThreshold:   occ.SessionThreshold,
			HistoryOccurrence:  occ.HistoryCount,
			HistoryThreshold:   occ.HistoryThreshold,
			Remediation: Remediation{
				AllowlistCommand: fmt.Sprintf("dcg allowlist add %q", v.RuleID),
			},
		}
		// v.AllowOnceCode's meaning is ResponseLevel-dependent (decision.go):
		// soft_block gets a reusable confirmCode/confirmCommand, everything
		// else (hard_block) gets a single-use allowOnceCode/allowOnceCommand
		// (spec.md §6 hook output contract).
		if v.ResponseLevel == engine.ResponseSoftBlock {
			h.ConfirmCode = v.AllowOnceCode
			h.Remediation.ConfirmCommand = confirmCommand(v.AllowOnceCode)
		} else {
			h.AllowOnceCode = v.AllowOnceCode
			h.Remediation.AllowOnceCommand = allowOnceCommand(v.AllowOnceCode)
		}
		out := Output{HookSpecificOutput: h}
		data, err := json.Marshal(out)
		if err != nil {
			// Marshaling our own struct cannot fail in practice; fail open
			// rather than emit a truncated/invalid stdout document.
			return ExitAllow, nil, ""
		}
		return ExitDeny, data, denyBox(v)
	default:
		return ExitAllow, nil, ""
	}
}

func allowOnceCommand(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("dcg allow-once %s", code)
}

func confirmCommand(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("dcg confirm %s", code)
}

func denyBox(v engine.Deny) string {
	var b strings.Builder
	b.WriteString("┌─ dcg: command blocked ─────────────────────────────\n")
	fmt.Fprintf(&b, "│ rule:     %s\n", v.RuleID)
	fmt.Fprintf(&b, "│ severity: %s\n", v.Severity)
	fmt.Fprintf(&b, "│ level:    %s\n", v.ResponseLevel)
	if v.Reason != "" {
		fmt.Fprintf(&b, "│ reason:   %s\n", v.Reason)
	}
	if v.AllowOnceCode != "" {
		if v.ResponseLevel == engine.ResponseSoftBlock {
			fmt.Fprintf(&b, "│ override: dcg confirm %s\n", v.AllowOnceCode)
		} else {
			fmt.Fprintf(&b, "│ override: dcg allow-once %s\n", v.AllowOnceCode)
		}
	}
	b.WriteString("└─────────────────────────────────────────────────────")
	return b.String()
}

func warnBox(v engine.Warn) string {
	var b strings.Builder
	b.WriteString("┌─ dcg: command flagged ─────────────────────────────\n")
	fmt.Fprintf(&b, "│ rule:   %s\n", v.RuleID)
	if v.Reason != "" {
		fmt.Fprintf(&b, "│ reason: %s\n", v.Reason)
	}
	b.WriteString("└─────────────────────────────────────────────────────")
	return b.String()
}
