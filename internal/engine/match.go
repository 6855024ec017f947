package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/segment"
)

// quickReject implements spec.md §4.3: a request passes iff some
// segment's executable word is exactly one of the enabled packs' trigger
// keywords. Matching the normalized executable word (not a substring
// search over the raw text) is what keeps ".gitignore" and quoted
// "rm -rf" from passing — the Segmenter already isolated the word and
// stripped wrapper prefixes and quoting before this check ever runs.
func quickReject(segments []segment.Segment, keywords map[string]struct{}) (passed bool, matchedKeyword string, matchedSegIdx int) {
	for i, s := range segments {
		if _, ok := keywords[s.ExecutableWord]; ok {
			return true, s.ExecutableWord, i
		}
	}
	return false, "", -1
}

// matchFirst returns the first safe pattern (in pack order) that matches
// seg, recording a trace step for every pattern it tries.
func matchFirst(patterns []*catalog.Pattern, seg segment.Segment, fullRaw string, budget time.Duration, trace *Trace, destructive bool) (*catalog.Pattern, bool) {
	for _, p := range patterns {
		matched, span, timedOut := evalPattern(p, seg, fullRaw, budget)
		trace.record(PatternEvalStep{
			Destructive: destructive,
			PackID:      p.PackID,
			PatternName: p.Name,
			RegexSource: p.Source,
			Matched:     matched,
			MatchedSpan: span,
			TimedOut:    timedOut,
		})
		if matched {
			return p, true
		}
	}
	return nil, false
}

// evalPattern matches p's regex against seg's executable span (or the
// full segment text, for patterns that opt in), under a wall-clock
// budget (spec.md §5 "Regex evaluation uses a per-pattern budget").
//
// go's regexp guarantees linear-time (RE2) matching, so a true
// preemptive timeout is unnecessary for any pattern in the bundled
// catalog; the budget is still measured after the match, and a pattern
// that exceeded it is reported as timed out and treated as no match.
// This mirrors the teacher's choice to use Go's
// regexp throughout (internal/core/patterns.go) rather than reach for a
// backtracking engine that would need real preemption.
func evalPattern(p *catalog.Pattern, seg segment.Segment, fullRaw string, budget time.Duration) (matched bool, span [2]int, timedOut bool) {
	target := seg.Raw
	if p.FullSegment && len(fullRaw) >= seg.Span.End {
		target = fullRaw[seg.Span.Start:seg.Span.End]
	}
	start := time.Now()
	loc := p.Regex.FindStringIndex(target)
	elapsed := time.Since(start)
	if budget > 0 && elapsed > budget {
		return false, [2]int{}, true
	}
	if loc == nil {
		return false, [2]int{}, false
	}
	return true, [2]int{loc[0], loc[1]}, false
}

func bodyHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
