// Package engine implements the Decision Engine (spec.md §4.8): the
// deterministic orchestration of the Pattern Catalog, Segmenter,
// Heredoc/Inline Extractor, Allowlist, Pending Exception Store, and
// Occurrence Tracker into a single CommandRequest -> Decision pipeline.
//
// Grounded on the teacher's PatternEngine.ClassifyCommand /
// classifyCompoundCommand (internal/core/patterns.go): the "compound
// command splits into segments, each segment classified independently"
// shape is kept. Unlike the teacher, the winning match is chosen by
// pack/tier order rather than by severity, and a parse failure is only
// recorded in the trace (the command fails open) rather than upgraded.
// The four-hardcoded-tier classification is replaced by the
// catalog's pack/tier iteration and the allowlist/pending/graduation
// stages the spec adds, none of which the teacher's engine had.
package engine

import (
	"time"

	"github.com/dicklesworthstone/dcg/internal/allowlist"
	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/extract"
	"github.com/dicklesworthstone/dcg/internal/pending"
	"github.com/dicklesworthstone/dcg/internal/segment"
	"github.com/dicklesworthstone/dcg/internal/tracker"
)

// CommandRequest is the pipeline's sole input (spec.md §3).
type CommandRequest struct {
	RawCommand string
	Cwd        string
	AgentHint  string
	SessionID  string
	Now        time.Time

	// OriginContext tags where RawCommand came from when this request is
	// a synthetic re-submission of an extracted heredoc/inline body
	// (spec.md §4.4, §4.5's Prefix-entry "context" scoping). Empty for a
	// top-level command actually about to run.
	OriginContext allowlist.ContextTag
}

// originContextForBodyKind maps an extract.Body.Kind to the allowlist
// context tag its re-submitted candidates should carry (spec.md §3
// Allowlist Entry `context`). Comment/search-pattern/disabled-code tags
// have no producer yet: nothing upstream of this pipeline identifies a
// shell comment or already-disabled line as such, so only the two kinds
// the Extractor actually emits are mapped here.
func originContextForBodyKind(kind string) allowlist.ContextTag {
	switch kind {
	case "heredoc":
		return allowlist.ContextHeredocExample
	case "inline":
		return allowlist.ContextStringArgument
	default:
		return ""
	}
}

// Dependencies bundles the engine's collaborators. All are optional: a
// nil field degrades that stage to a no-op fail-open pass-through, which
// lets callers (e.g. `dcg explain` against a bare catalog) run the
// engine without standing up the full stateful-store stack.
type Dependencies struct {
	Catalog  *catalog.Catalog
	Allowlist *allowlist.List
	Pending  *pending.Store
	Tracker  *tracker.Tracker
}

// ResponseScope decides whether graduated-response history counting is
// scoped to the current project directory or global (spec.md §9 Open
// Question (b), decided per DESIGN.md: project-scoped by default).
type ResponseScope string

const (
	ScopeProject ResponseScope = "project"
	ScopeGlobal  ResponseScope = "global"
)

// Options configures the pipeline's tunables (spec.md §4.8.1, §5).
type Options struct {
	Mode               Mode
	Thresholds         GraduationThresholds
	HistoryWindow      time.Duration // window passed to tracker.HistoryCount
	Scope              ResponseScope // history_count scoping; default ScopeProject
	DisabledPacks      map[string]bool
	MaxHeredocDepth    int           // default extract.DefaultMaxDepth
	StrictHeredoc      bool          // heredoc extraction failure becomes Deny instead of fail-open
	PerPatternBudget   time.Duration // default 5ms
	PerRequestDeadline time.Duration // default 250ms
}

// DefaultOptions returns spec.md's defaults.
func DefaultOptions() Options {
	return Options{
		Mode:               ModeStandard,
		Thresholds:         DefaultThresholds(),
		HistoryWindow:      30 * 24 * time.Hour,
		Scope:              ScopeProject,
		MaxHeredocDepth:    extract.DefaultMaxDepth,
		PerPatternBudget:   5 * time.Millisecond,
		PerRequestDeadline: 250 * time.Millisecond,
	}
}

// candidate is an ordered destructive-match identity, used both for the
// outer scan's "first match wins, keep scanning for trace" rule and for
// comparing an outer match against a heredoc sub-body's carried-up Deny.
type candidate struct {
	tierIdx     int
	packID      string
	patternName string
	ruleID      string
	reason      string
	severity    catalog.Severity
	segmentRaw  string
	matchSpan   [2]int
	context     allowlist.ContextTag
}

func (c candidate) less(o candidate) bool {
	if c.tierIdx != o.tierIdx {
		return c.tierIdx < o.tierIdx
	}
	if c.packID != o.packID {
		return c.packID < o.packID
	}
	return c.patternName < o.patternName
}

// Evaluate runs the full Decision Engine pipeline for a single request
// (spec.md §4.8). Pass a non-nil trace to capture per-step detail; pass
// nil in hook mode to pay zero trace cost (spec.md §4.9).
func Evaluate(req CommandRequest, deps Dependencies, opts Options, trace *Trace) Decision {
	start := time.Now()
	deadline := opts.PerRequestDeadline
	if deadline <= 0 {
		deadline = DefaultOptions().PerRequestDeadline
	}

	d := evaluateInternal(req, deps, opts, trace, 0, start, deadline)
	return d
}

func evaluateInternal(req CommandRequest, deps Dependencies, opts Options, trace *Trace, depth int, start time.Time, deadline time.Duration) Decision {
	if len(req.RawCommand) > MaxInputBytes {
		trace.record(FailOpenStep{Component: "input_parsing", Detail: errOversizeInput.Error()})
		return Allow{ReasonSource: ReasonFailOpen, Reason: errOversizeInput.Error()}
	}
	if time.Since(start) > deadline {
		trace.record(FailOpenStep{Component: "deadline", Detail: errDeadlineExceeded.Error()})
		return Allow{ReasonSource: ReasonFailOpen, Reason: errDeadlineExceeded.Error()}
	}

	seg := segment.New()
	segStart := time.Now()
	segResult := seg.Split(req.RawCommand)
	trace.record(InputParsingStep{
		stepBase:     stepBase{Duration: time.Since(segStart)},
		SegmentCount: len(segResult.Segments),
		ParseError:   segResult.ParseError,
	})
	if len(segResult.Segments) == 0 {
		return Allow{ReasonSource: ReasonNoSegments}
	}

	if deps.Catalog == nil {
		return Allow{ReasonSource: ReasonFailOpen, Reason: "no pattern catalog configured"}
	}

	qrStart := time.Now()
	keywords := deps.Catalog.TriggerKeywords(opts.DisabledPacks)
	passed, matchedKeyword, matchedSegIdx := quickReject(segResult.Segments, keywords)
	trace.record(QuickRejectStep{
		stepBase:       stepBase{Duration: time.Since(qrStart)},
		Passed:         passed,
		MatchedKeyword: matchedKeyword,
		SegmentIndex:   matchedSegIdx,
	})
	if !passed {
		return Allow{ReasonSource: ReasonQuickReject}
	}

	packs := deps.Catalog.EnabledPacks(opts.DisabledPacks)

	// Step 3: heredoc/inline extraction, recursive. A carried-up Deny from
	// a sub-body is compared against the outer pipeline's own result at
	// the end, per candidate.less ordering (spec.md §4.8 step 3, step 6).
	var heredocDeny *Deny
	var heredocCand *candidate
	maxDepth := opts.MaxHeredocDepth
	if maxDepth <= 0 {
		maxDepth = extract.DefaultMaxDepth
	}
	if depth < maxDepth {
		for _, segM := range segResult.Segments {
			bodies := extract.FromSegment(segM.ExecutableWord, segM.Raw)
			for _, body := range bodies {
				subReq := CommandRequest{
					RawCommand:    body.Text,
					Cwd:           req.Cwd,
					SessionID:     req.SessionID,
					Now:           req.Now,
					OriginContext: originContextForBodyKind(body.Kind),
				}
				var subTrace *Trace
				if trace != nil {
					subTrace = &Trace{}
				}
				subDecision := evaluateInternal(subReq, deps, opts, subTrace, depth+1, start, deadline)
				trace.record(HeredocExtractStep{
					BodyHash: bodyHash(body.Text),
					Kind:     body.Kind,
					Depth:    depth + 1,
					SubTrace: subTrace,
				})
				if deny, ok := subDecision.(Deny); ok {
					cand := candidate{
						tierIdx:     tierIdxForRule(packs, deny.PackID),
						packID:      deny.PackID,
						patternName: deny.PatternName,
						ruleID:      deny.RuleID,
					}
					if heredocCand == nil || cand.less(*heredocCand) {
						heredocCand = &cand
						d := deny
						heredocDeny = &d
					}
				}
			}
		}
	} else if len(segResult.Segments) > 0 {
		trace.record(FailOpenStep{Component: "heredoc_extract", Detail: "max recursion depth reached"})
	}

	// Step 4: safe-pattern pass. A match anywhere short-circuits the
	// entire evaluation, overriding any carried-up heredoc Deny.
	for _, segM := range segResult.Segments {
		for _, pack := range packs {
			if m, ok := matchFirst(pack.Safe, segM, req.RawCommand, opts.PerPatternBudget, trace, false); ok {
				return Allow{ReasonSource: ReasonSafePattern, Reason: pack.ID + ":" + m.Name}
			}
		}
	}

	// Step 5: destructive-pattern pass. First match per the segment-major,
	// pack-minor iteration order is authoritative; all matches are scanned
	// for the trace.
	var outerCandidates []candidate
	for _, segM := range segResult.Segments {
		for _, pack := range packs {
			for _, p := range pack.Destructive {
				matched, span, timedOut := evalPattern(p, segM, req.RawCommand, opts.PerPatternBudget)
				trace.record(PatternEvalStep{
					Destructive: true,
					PackID:      pack.ID,
					PatternName: p.Name,
					RegexSource: p.Source,
					Matched:     matched,
					MatchedSpan: span,
					TimedOut:    timedOut,
				})
				if matched {
					outerCandidates = append(outerCandidates, candidate{
						tierIdx:     catalog.TierIndex(pack.Tier),
						packID:      pack.ID,
						patternName: p.Name,
						ruleID:      p.RuleID(),
						reason:      p.Reason,
						severity:    p.Severity,
						segmentRaw:  segM.Raw,
						matchSpan:   span,
						context:     req.OriginContext,
					})
				}
			}
		}
	}

	outerDecision, outerCand := resolveOuter(req, deps, opts, trace, outerCandidates)

	if heredocCand != nil {
		if outerCand == nil || heredocCand.less(*outerCand) {
			return *heredocDeny
		}
	}
	return outerDecision
}

// resolveOuter implements spec.md §4.8 steps 6-7 against the outer
// segments' destructive-match candidates: allowlist suppression in
// candidate order, pending-exception consult, then graduated response.
func resolveOuter(req CommandRequest, deps Dependencies, opts Options, trace *Trace, cands []candidate) (Decision, *candidate) {
	for i := range cands {
		cand := cands[i]
		if deps.Allowlist != nil {
			alStart := time.Now()
			entry, suppressed := deps.Allowlist.Match(req.RawCommand, contextForCandidate(cand))
			_ = entry
			trace.record(AllowlistCheckStep{
				stepBase:        stepBase{Duration: time.Since(alStart)},
				EntriesExamined: len(deps.Allowlist.Entries),
				Matched:         suppressed,
				MatchedRuleID:   cand.ruleID,
			})
			if suppressed {
				continue // spec.md §4.8 step 6a: resume scanning the next match
			}
		}

		if deps.Pending != nil {
			if allowed, err := deps.Pending.Consult(req.Cwd, req.RawCommand, req.Now); err == nil && allowed {
				return Allow{ReasonSource: ReasonPendingGrant, Reason: cand.ruleID}, &cand
			}
		}

		level := ResponseWarning
		sessionCount, historyCount := 0, 0
		if deps.Tracker != nil {
			st := deps.Tracker.LoadSession(req.SessionID, req.Now)
			sessionCount = deps.Tracker.SessionCount(st, cand.ruleID)
			window := opts.HistoryWindow
			if window <= 0 {
				window = DefaultOptions().HistoryWindow
			}
			historyCount = deps.Tracker.HistoryCount(cand.ruleID, window, req.Now, req.Cwd, opts.Scope != ScopeGlobal)
			level = graduate(opts.Mode, cand.severity, sessionCount, historyCount, opts.Thresholds)
			deps.Tracker.RecordOccurrence(st, cand.ruleID, req.Now)
			_ = deps.Tracker.AppendHistory(tracker.HistoryRecord{
				SchemaVersion: tracker.HistorySchemaVersion,
				Timestamp:     req.Now,
				RuleID:        cand.ruleID,
				PackID:        cand.packID,
				Severity:      string(cand.severity),
				Decision:      string(level),
				SessionID:     req.SessionID,
				Cwd:           req.Cwd,
				CommandHash:   bodyHash(req.RawCommand),
				Allowed:       level == ResponseWarning,
			})
		} else {
			level = graduate(opts.Mode, cand.severity, 0, 0, opts.Thresholds)
		}
		trace.record(GraduationStep{
			Mode:             string(opts.Mode),
			Severity:         string(cand.severity),
			SessionCount:     sessionCount,
			HistoryCount:     historyCount,
			SessionThreshold: opts.Thresholds.SessionThreshold,
			HistoryThreshold: opts.Thresholds.HistoryThreshold,
			Level:            level,
		})

		if level == ResponseWarning {
			return Warn{RuleID: cand.ruleID, Reason: cand.reason, ResponseLevel: level}, &cand
		}

		var code string
		if deps.Pending != nil {
			// HardBlock mints a single-use allow-once code valid 24h
			// (pending.DefaultTTL); SoftBlock mints a reusable confirm code
			// valid only 5 minutes (pending.ConfirmTTL) — spec.md §4.8.1.
			singleUse := level == ResponseHardBlock
			ttl := pending.ConfirmTTL
			if singleUse {
				ttl = pending.DefaultTTL
			}
			exc := pending.New(req.Now, req.Cwd, req.RawCommand, redact(req.RawCommand), cand.reason, singleUse, ttl)
			if err := deps.Pending.Append(exc); err == nil {
				code = exc.ShortCode
			}
		}
		return Deny{
			RuleID:        cand.ruleID,
			PackID:        cand.packID,
			PatternName:   cand.patternName,
			Reason:        cand.reason,
			Severity:      cand.severity,
			ResponseLevel: level,
			AllowOnceCode: code,
		}, &cand
	}
	return Allow{ReasonSource: ReasonNoMatch}, nil
}

func contextForCandidate(cand candidate) allowlist.ContextTag {
	return cand.context
}

func redact(raw string) string {
	// Placeholder redaction hook: no secret-bearing tokens are identified
	// by the engine itself today; `internal/output` applies presentation
	// redaction. Kept as an explicit seam rather than silently storing
	// the identical string under a different name.
	return raw
}

func tierIdxForRule(packs []*catalog.Pack, packID string) int {
	for _, p := range packs {
		if p.ID == packID {
			return catalog.TierIndex(p.Tier)
		}
	}
	return len(packs)
}
