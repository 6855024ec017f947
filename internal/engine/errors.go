package engine

import "errors"

// Sentinel errors used internally for fail-open branching. Kept as
// errors.Is-compatible values rather than string-matched panics — the
// teacher's own code returns plain fmt.Errorf without sentinels in most
// places, but SPEC_FULL.md's error-handling section calls for sentinel
// errors where a caller (here, the engine's own pipeline) needs to branch
// on error identity rather than just logging and moving on.
var (
	errOversizeInput   = errors.New("engine: input exceeds maximum size")
	errDeadlineExceeded = errors.New("engine: per-request deadline exceeded")
	errRegexTimeout    = errors.New("engine: pattern evaluation exceeded wall-clock budget")
)

// MaxInputBytes bounds the raw command size accepted by Evaluate
// (spec.md §4.8.2 "oversize input (> 1 MiB)").
const MaxInputBytes = 1 << 20
