package engine

import "github.com/dicklesworthstone/dcg/internal/catalog"

// Decision is the closed tagged union of engine outcomes (spec.md §3).
// Implemented as a sealed interface rather than a string-tagged struct so
// callers exhaust the variant set at compile time — the teacher's
// MatchResult used a single struct with a RiskTier string field; the
// spec's three genuinely distinct payload shapes (Allow has no rule_id,
// Deny has an allow_once_code, Warn has neither a code nor a suppression
// effect) are a better fit for Go's sealed-interface idiom (SPEC_FULL.md
// §2.2 design note).
type Decision interface {
	isDecision()
}

// ReasonSource names which pipeline stage produced an Allow.
type ReasonSource string

const (
	ReasonQuickReject   ReasonSource = "quick_reject"
	ReasonSafePattern   ReasonSource = "safe_pattern"
	ReasonAllowlist     ReasonSource = "allowlist"
	ReasonPendingGrant  ReasonSource = "pending_exception"
	ReasonNoSegments    ReasonSource = "no_segments"
	ReasonNoMatch       ReasonSource = "no_destructive_match"
	ReasonFailOpen      ReasonSource = "fail_open"
)

// Allow is the permissive decision variant.
type Allow struct {
	ReasonSource ReasonSource
	Reason       string
}

func (Allow) isDecision() {}

// ResponseLevel is the graduated-response outcome (spec.md §4.8.1).
type ResponseLevel string

const (
	ResponseWarning   ResponseLevel = "warning"
	ResponseSoftBlock ResponseLevel = "soft_block"
	ResponseHardBlock ResponseLevel = "hard_block"
)

// Deny is the blocking decision variant.
type Deny struct {
	RuleID        string
	PackID        string
	PatternName   string
	Reason        string
	Severity      catalog.Severity
	ResponseLevel ResponseLevel
	// AllowOnceCode is the short_code of the synthesized PendingException
	// (spec.md §3 Decision "allow_once_code?"). Its meaning depends on
	// ResponseLevel: for hard_block it is a single-use allow-once code
	// (pending.DefaultTTL); for soft_block it is a reusable confirm code
	// (pending.ConfirmTTL). hookio.Render maps it to the hook contract's
	// distinct allowOnceCode/confirmCode stdout keys accordingly.
	AllowOnceCode string
}

func (Deny) isDecision() {}

// Warn is the allow-with-warning decision variant: the command proceeds
// but a message is emitted and history is recorded.
type Warn struct {
	RuleID        string
	Reason        string
	ResponseLevel ResponseLevel
}

func (Warn) isDecision() {}
