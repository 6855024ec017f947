// Package extract implements the Heredoc / Inline-Code Extractor
// (spec.md §4.4). It recognizes here-documents and interpreter -c/-e
// arguments and produces synthetic sub-bodies to be re-submitted to the
// Decision Engine.
//
// Grounded on other_examples/eba9d056_dannycoates-cc-allow's HeredocRule
// and ConstructsConfig (heredocs treated as a first-class, policy-bearing
// shell construct) — there is no teacher equivalent, since SLB's
// approval workflow never needed to look inside embedded script bodies.
package extract

import (
	"regexp"
	"strings"

	"github.com/dicklesworthstone/dcg/internal/segment"
)

// DefaultMaxDepth bounds recursive re-submission (spec.md §4.4 "default 4").
const DefaultMaxDepth = 4

// Body is one extracted embedded command/script to re-submit to the engine.
type Body struct {
	Text   string
	Kind   string // "heredoc" or "inline"
	Tag    string // heredoc terminator tag, if Kind == "heredoc"
}

var hereDocRe = regexp.MustCompile(`<<-?\s*(['"]?)(\w+)(['"]?)`)
var hereStringRe = regexp.MustCompile(`<<<\s*("[^"]*"|'[^']*'|\S+)`)

// interpreters maps an interpreter's executable word to the flag that
// introduces an inline script argument (spec.md §4.4 "Inline code arguments").
var interpreters = map[string]string{
	"bash": "-c", "sh": "-c", "zsh": "-c", "dash": "-c", "ksh": "-c",
	"python": "-c", "python3": "-c",
	"node": "-e",
	"perl": "-e",
	"ruby": "-e",
}

// FromSegment extracts any heredoc bodies and inline interpreter code
// found in a single executable segment's raw text.
func FromSegment(execWord, raw string) []Body {
	var out []Body

	if m := hereDocRe.FindStringSubmatchIndex(raw); m != nil {
		tag := raw[m[4]:m[5]]
		body, ok := extractHeredocBody(raw, m[1], tag)
		if ok {
			out = append(out, Body{Text: body, Kind: "heredoc", Tag: tag})
		}
	}
	if m := hereStringRe.FindStringSubmatch(raw); m != nil {
		out = append(out, Body{Text: strings.Trim(m[1], `"'`), Kind: "heredoc"})
	}

	if flag, ok := interpreters[execWord]; ok {
		if body, ok := extractInlineArg(raw, flag); ok {
			out = append(out, Body{Text: body, Kind: "inline"})
		}
	}

	return out
}

// extractHeredocBody finds the text between the heredoc operator and its
// terminator line. We do not execute or expand the body; quoted tags are
// treated as literal (spec.md §4.4).
func extractHeredocBody(raw string, afterIdx int, tag string) (string, bool) {
	nl := strings.IndexByte(raw[afterIdx:], '\n')
	if nl < 0 {
		// Body not present in this single-line command string (common for
		// hook envelopes that only carry the invocation line); nothing to
		// extract, not a parse failure.
		return "", false
	}
	rest := raw[afterIdx+nl+1:]
	lines := strings.Split(rest, "\n")
	var body strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == tag {
			// Drop the trailing newline before the terminator: it is an
			// artifact of capturing line-by-line, not part of the
			// resubmitted command (a one-line body should read identically
			// to its top-level equivalent for pattern/allowlist matching).
			return strings.TrimSuffix(body.String(), "\n"), true
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	// Unterminated heredoc: fail open for this body, per spec.md §4.4.
	return strings.TrimSuffix(body.String(), "\n"), true
}

// extractInlineArg returns the argument immediately following flag in a
// quote-aware field split of raw.
func extractInlineArg(raw, flag string) (string, bool) {
	fields := segment.Fields(raw)
	for i, f := range fields {
		if f == flag && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return "", false
}
