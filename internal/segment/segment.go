// Package segment implements the Shell Tokenizer / Segmenter (spec.md §4.2).
//
// It splits a raw command into executable segments, stripping wrapper
// prefixes and variable assignments so the Quick-Reject Filter and the
// Decision Engine can gate and match on the true executable word.
// Per-segment field splitting delegates to mattn/go-shellwords (already a
// teacher dependency) for quote-aware word boundaries; the outer
// separator split and wrapper-stripping state machine are spec-specific
// and have no equivalent in the pack, so they are hand-written here in
// the teacher's table-driven idiom (spec.md §9 design note).
package segment

import (
	"regexp"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// Span is a byte range within the raw command.
type Span struct {
	Start int
	End   int
}

// Segment is one executable unit of a (possibly compound) command.
type Segment struct {
	Span           Span
	Raw            string   // the segment's raw text, wrapper/assignments stripped
	ExecutableWord string   // the resolved command word, e.g. "git"
	WrapperChain   []string // wrapper prefixes stripped, in order, e.g. ["sudo", "env"]
	Assignments    []string // leading VAR=value assignments stripped from the head
}

// Result is the outcome of segmenting a raw command.
type Result struct {
	Segments   []Segment
	ParseError bool // true if quoting could not be resolved; Segments holds a single fail-open segment
}

// multiCharSeparators and singleCharSeparators split unquoted segment
// boundaries: ; && || | & and newline.
// Longest operators are checked first so "&&" is not split as two "&".
var multiCharSeparators = []string{"&&", "||"}

const singleCharSeparators = ";|&\n"

// heredocOpRe recognizes a heredoc operator's opening token (<<TAG, <<-TAG,
// <<'TAG', <<"TAG") but never a here-string (<<<TAG): the required \w+
// after the optional quote cannot match the literal third '<' of "<<<".
var heredocOpRe = regexp.MustCompile(`^<<-?\s*(['"]?)(\w+)(['"]?)`)

// maxWrapperLayers bounds wrapper-stripping recursion (spec.md §4.2 step 4).
const maxWrapperLayers = 4

// knownWrappers strips at most one layer's worth of a wrapper's own flags
// before moving to the next layer. env additionally consumes VAR=val args.
var knownWrappers = map[string]struct{}{
	"sudo":         {},
	"command":      {},
	"exec":         {},
	"time":         {},
	"nohup":        {},
	"env":          {},
	"/usr/bin/env": {},
}

var assignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// Segmenter splits and normalizes raw commands into executable segments.
type Segmenter struct{}

// New returns a Segmenter. It holds no state; a value is cheap to share.
func New() *Segmenter {
	return &Segmenter{}
}

// Split implements spec.md §4.2's splitting rules in order.
//
// Unterminated quotes fail open: the raw command is returned as a single
// segment and ParseError is set, matching spec.md §4.2 "Edge cases".
func (s *Segmenter) Split(raw string) Result {
	spans, ok := splitUnquoted(raw)
	if !ok {
		return Result{
			ParseError: true,
			Segments: []Segment{{
				Span:           Span{Start: 0, End: len(raw)},
				Raw:            raw,
				ExecutableWord: firstWord(raw),
			}},
		}
	}

	segments := make([]Segment, 0, len(spans))
	for _, sp := range spans {
		text := raw[sp.Start:sp.End]
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		seg := Segment{Span: sp, Raw: trimmed}
		seg.Assignments, trimmed = stripAssignments(trimmed)
		seg.WrapperChain, trimmed = stripWrappers(trimmed)
		seg.ExecutableWord = normalizeExecutableWord(firstWord(trimmed))
		seg.Raw = trimmed
		segments = append(segments, seg)
	}

	return Result{Segments: segments}
}

// splitUnquoted scans raw for top-level separators, respecting single- and
// double-quote spans and backslash escapes (spec.md §4.2 step 1–2). It
// returns false if a quote is left unterminated.
func splitUnquoted(raw string) ([]Span, bool) {
	var spans []Span
	start := 0
	i := 0
	inSingle, inDouble := false, false

	for i < len(raw) {
		c := raw[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
			i++
		case inDouble:
			if c == '\\' && i+1 < len(raw) && strings.ContainsRune(`$\"`+"`", rune(raw[i+1])) {
				i += 2
				continue
			}
			if c == '"' {
				inDouble = false
			}
			i++
		case c == '\'':
			inSingle = true
			i++
		case c == '"':
			inDouble = true
			i++
		case c == '\\' && i+1 < len(raw):
			i += 2
		case heredocOpRe.MatchString(raw[i:]) && (i == 0 || raw[i-1] != '<'):
			// A heredoc body is opaque to separator splitting: its
			// embedded newlines are literal text, not statement
			// boundaries (spec.md §4.2, §4.4). Skip straight past the
			// terminator line so the body survives intact for the
			// Heredoc Extractor instead of being chopped into
			// independent top-level segments.
			i = skipHeredocBody(raw, i)
		default:
			if sepLen := matchSeparator(raw[i:]); sepLen > 0 {
				spans = append(spans, Span{Start: start, End: i})
				i += sepLen
				start = i
				continue
			}
			i++
		}
	}

	if inSingle || inDouble {
		return nil, false
	}
	spans = append(spans, Span{Start: start, End: len(raw)})
	return spans, true
}

// skipHeredocBody returns the index just past a heredoc's terminator line,
// given that raw[opIdx:] begins with a heredoc operator matched by
// heredocOpRe. The body itself is treated as opaque text: no separator or
// quote scanning happens inside it. An unterminated heredoc (no line
// matching the tag) fails open by consuming to the end of raw, mirroring
// extract.extractHeredocBody's own fail-open behavior.
func skipHeredocBody(raw string, opIdx int) int {
	m := heredocOpRe.FindStringSubmatchIndex(raw[opIdx:])
	tag := raw[opIdx+m[4] : opIdx+m[5]]

	nl := strings.IndexByte(raw[opIdx:], '\n')
	if nl < 0 {
		return len(raw)
	}
	pos := opIdx + nl + 1

	for {
		lineEnd := strings.IndexByte(raw[pos:], '\n')
		var line string
		if lineEnd < 0 {
			line = raw[pos:]
		} else {
			line = raw[pos : pos+lineEnd]
		}
		if strings.TrimSpace(line) == tag {
			if lineEnd < 0 {
				return len(raw)
			}
			return pos + lineEnd + 1
		}
		if lineEnd < 0 {
			return len(raw)
		}
		pos += lineEnd + 1
	}
}

func matchSeparator(rest string) int {
	for _, sep := range multiCharSeparators {
		if strings.HasPrefix(rest, sep) {
			return len(sep)
		}
	}
	if len(rest) > 0 && strings.ContainsRune(singleCharSeparators, rune(rest[0])) {
		return 1
	}
	return 0
}

// stripAssignments removes leading FOO=bar BAZ=qux assignments from a
// segment head (spec.md §4.2 step 3).
func stripAssignments(text string) ([]string, string) {
	var assigns []string
	rest := text
	for {
		rest = strings.TrimLeft(rest, " \t")
		word := firstWord(rest)
		if word == "" || !assignmentRe.MatchString(word) {
			break
		}
		assigns = append(assigns, word)
		rest = rest[len(word):]
	}
	return assigns, strings.TrimLeft(rest, " \t")
}

// stripWrappers removes up to maxWrapperLayers wrapper prefixes whose
// first argument is the true command (spec.md §4.2 step 4).
func stripWrappers(text string) ([]string, string) {
	var chain []string
	rest := text
	for layer := 0; layer < maxWrapperLayers; layer++ {
		rest = strings.TrimLeft(rest, " \t")
		word := firstWord(rest)
		base := word
		if _, known := knownWrappers[base]; !known {
			break
		}
		chain = append(chain, base)
		rest = strings.TrimPrefix(rest, word)
		rest = strings.TrimLeft(rest, " \t")

		if base == "sudo" {
			rest = trimFlag(rest, "-E")
		}
		if base == "env" || base == "/usr/bin/env" {
			for {
				next := firstWord(rest)
				if assignmentRe.MatchString(next) || (strings.HasPrefix(next, "-") && next != "") {
					rest = strings.TrimLeft(strings.TrimPrefix(rest, next), " \t")
					continue
				}
				break
			}
		}
	}
	return chain, rest
}

func trimFlag(text, flag string) string {
	if strings.HasPrefix(text, flag) {
		rest := strings.TrimPrefix(text, flag)
		return strings.TrimLeft(rest, " \t")
	}
	return text
}

// knownBinaryBaseNames is the set of bare names whose leading "./" is
// normalized away (spec.md §4.2 step 5: "./" on commands whose word
// matches a known binary). Scoped to the names quick-reject's packs
// actually care about rather than importing the catalog package, so a
// local script invoked as "./deploy.sh" keeps its "./" and is never
// mistaken for the deploy binary.
var knownBinaryBaseNames = map[string]struct{}{
	"rm": {}, "shred": {}, "dd": {}, "mkfs": {}, "fdisk": {}, "parted": {}, "chmod": {}, "chown": {},
	"git":     {},
	"kill":    {}, "pkill": {}, "killall": {}, "shutdown": {}, "reboot": {}, "halt": {}, "systemctl": {}, "init": {},
	"terraform": {}, "tofu": {},
	"aws": {}, "gcloud": {}, "kubectl": {},
	"docker": {}, "podman": {}, "helm": {},
	"psql": {}, "mysql": {}, "mongo": {},
	"npm": {}, "pip": {}, "pip3": {}, "cargo": {}, "apt": {}, "apt-get": {}, "yum": {}, "brew": {},
	"gh": {}, "circleci": {}, "argo": {},
	"bash": {}, "sh": {}, "zsh": {}, "dash": {}, "ksh": {}, "python": {}, "python3": {}, "node": {}, "perl": {}, "ruby": {},
}

// normalizeExecutableWord implements spec.md §4.2 step 5: strip a leading
// backslash escape, and a leading "./" only when the bare word that
// follows matches a known binary name (so "./my-script.sh" is left
// alone).
func normalizeExecutableWord(word string) string {
	word = strings.TrimPrefix(word, "\\")
	if bare, ok := strings.CutPrefix(word, "./"); ok {
		if _, known := knownBinaryBaseNames[bare]; known {
			return bare
		}
	}
	return word
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " \t")
	fields, err := shellwords.Parse(s)
	if err == nil && len(fields) > 0 {
		return fields[0]
	}
	// Fall back to a naive split so a quote error never loses the word
	// entirely — matching spec.md's fail-open posture.
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s
	}
	return s[:i]
}

// Fields quote-aware-splits a single segment's text into words, used by
// the extractor to find an interpreter's -c/-e argument.
func Fields(s string) []string {
	fields, err := shellwords.Parse(s)
	if err != nil {
		return strings.Fields(s)
	}
	return fields
}
