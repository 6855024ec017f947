// Package allowlist implements the project + user Allowlist (spec.md §4.5).
//
// Entries are TOML-decoded with github.com/BurntSushi/toml — the same
// library the teacher's internal/config package uses — and merged
// project-over-user. The tagged-variant entry shape (Exact/Prefix/Regex)
// is new structure the spec requires; the TOML table-of-rules layout and
// field-name vocabulary (reason, added_by, expires_at) is grounded on
// other_examples/eba9d056_dannycoates-cc-allow's Config/Rule shape.
package allowlist

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ContextTag scopes where a Prefix entry's matched rule must have fired.
type ContextTag string

const (
	ContextStringArgument ContextTag = "string-argument"
	ContextSearchPattern  ContextTag = "search-pattern"
	ContextHeredocExample ContextTag = "heredoc-example"
	ContextComment        ContextTag = "comment"
	ContextDisabledCode   ContextTag = "disabled-code"
)

// Kind discriminates the tagged AllowlistEntry variant (spec.md §3).
type Kind string

const (
	KindExact Kind = "exact"
	KindPrefix Kind = "prefix"
	KindRegex Kind = "regex"
)

// rawEntry is the on-disk TOML shape of one [[allow]] table.
type rawEntry struct {
	Command         string `toml:"command"`
	CommandPrefix   string `toml:"command_prefix"`
	Pattern         string `toml:"pattern"`
	RiskAcknowledged bool  `toml:"risk_acknowledged"`
	Context         string `toml:"context"`
	Reason          string `toml:"reason"`
	AddedBy         string `toml:"added_by"`
	AddedAt         string `toml:"added_at"`
	ExpiresAt       string `toml:"expires_at"`
}

type rawFile struct {
	Allow []rawEntry `toml:"allow"`
}

// Entry is one compiled, validated allowlist entry.
type Entry struct {
	Kind             Kind
	Command          string
	Prefix           string
	Context          ContextTag
	Regex            *regexp.Regexp
	RiskAcknowledged bool
	Reason           string
	AddedBy          string
	AddedAt          time.Time
	ExpiresAt        *time.Time
	Source           string // file path this entry was loaded from
}

// Expired reports whether the entry's expires_at has passed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.IsZero() && now.After(*e.ExpiresAt)
}

// LoadWarning describes a non-fatal problem found while loading (spec.md
// §4.5 "warn on dangerously broad patterns", §7 AllowlistLoadError).
type LoadWarning struct {
	Source string
	Detail string
}

// List is the merged, order-preserving allowlist (project entries first,
// then user entries — spec.md §4.5 "Merge project ... over user").
type List struct {
	Entries  []Entry
	Warnings []LoadWarning
}

// Load reads and merges the project and user allowlist files. Either path
// may not exist; a missing file is treated as empty (fail-open, spec.md §7
// IoError). Expired entries are dropped at load time.
func Load(projectPath, userPath string, now time.Time) (*List, error) {
	list := &List{}

	projectEntries, warns, err := loadFile(projectPath, now)
	if err != nil {
		return nil, err
	}
	list.Entries = append(list.Entries, projectEntries...)
	list.Warnings = append(list.Warnings, warns...)

	userEntries, warns, err := loadFile(userPath, now)
	if err != nil {
		return nil, err
	}
	list.Entries = append(list.Entries, userEntries...)
	list.Warnings = append(list.Warnings, warns...)

	return list, nil
}

func loadFile(path string, now time.Time) ([]Entry, []LoadWarning, error) {
	if path == "" {
		return nil, nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		// Read errors fail open: treat as empty, matching spec.md §7 IoError.
		return nil, []LoadWarning{{Source: path, Detail: fmt.Sprintf("read error (treated as empty): %v", err)}}, nil
	}

	var raw rawFile
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, []LoadWarning{{Source: path, Detail: fmt.Sprintf("parse error (treated as empty): %v", err)}}, nil
	}

	var entries []Entry
	var warnings []LoadWarning
	for _, re := range raw.Allow {
		entry, warn, ok := compileEntry(re, path)
		if warn != "" {
			warnings = append(warnings, LoadWarning{Source: path, Detail: warn})
		}
		if !ok {
			continue
		}
		if entry.Expired(now) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, warnings, nil
}

func compileEntry(re rawEntry, source string) (Entry, string, bool) {
	e := Entry{
		Reason:  re.Reason,
		AddedBy: re.AddedBy,
		Source:  source,
	}
	if re.AddedAt != "" {
		if t, err := time.Parse(time.RFC3339, re.AddedAt); err == nil {
			e.AddedAt = t
		}
	}
	if re.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, re.ExpiresAt); err == nil {
			e.ExpiresAt = &t
		}
	}
	if re.Context != "" {
		e.Context = ContextTag(re.Context)
	}

	switch {
	case re.Pattern != "":
		if !re.RiskAcknowledged {
			// Regex entries without risk_acknowledged are rejected at load
			// (spec.md §4.5, §3 AllowlistEntry).
			return Entry{}, fmt.Sprintf("regex entry %q rejected: risk_acknowledged is false", re.Pattern), false
		}
		rx, err := regexp.Compile(re.Pattern)
		if err != nil {
			return Entry{}, fmt.Sprintf("regex entry %q invalid: %v", re.Pattern, err), false
		}
		if rx.MatchString("") {
			// Still load it, but surface the danger per spec.md §4.5.
			e.Kind = KindRegex
			e.Regex = rx
			e.RiskAcknowledged = true
			return e, fmt.Sprintf("regex entry %q matches the empty string (dangerously broad)", re.Pattern), true
		}
		e.Kind = KindRegex
		e.Regex = rx
		e.RiskAcknowledged = true
		return e, "", true
	case re.CommandPrefix != "":
		e.Kind = KindPrefix
		e.Prefix = re.CommandPrefix
		return e, "", true
	case re.Command != "":
		e.Kind = KindExact
		e.Command = re.Command
		return e, "", true
	default:
		return Entry{}, "entry has no command, command_prefix, or pattern", false
	}
}

// Match reports whether raw (evaluated under the matched rule's context
// tag, when the entry is a Prefix entry) is suppressed by any entry.
// It returns the first matching entry in file order (spec.md §4.5).
func (l *List) Match(raw string, matchContext ContextTag) (*Entry, bool) {
	for i := range l.Entries {
		e := &l.Entries[i]
		switch e.Kind {
		case KindExact:
			if raw == e.Command {
				return e, true
			}
		case KindPrefix:
			if strings.HasPrefix(raw, e.Prefix) {
				rest := raw[len(e.Prefix):]
				if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
					if e.Context == "" || e.Context == matchContext {
						return e, true
					}
				}
			}
		case KindRegex:
			if e.Regex.MatchString(raw) {
				return e, true
			}
		}
	}
	return nil, false
}
