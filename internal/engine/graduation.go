package engine

import "github.com/dicklesworthstone/dcg/internal/catalog"

// Mode is the configured strictness profile (spec.md §4.8.1).
type Mode string

const (
	ModeParanoid Mode = "paranoid"
	ModeStrict   Mode = "strict"
	ModeStandard Mode = "standard"
	ModeLenient  Mode = "lenient"
)

// GraduationThresholds configures the graduated-response selection table.
type GraduationThresholds struct {
	SessionThreshold   int  // default 2
	HistoryThreshold   int  // default 5
	CriticalAlwaysHard bool // default true
}

// DefaultThresholds returns spec.md §4.8.1's default thresholds.
func DefaultThresholds() GraduationThresholds {
	return GraduationThresholds{SessionThreshold: 2, HistoryThreshold: 5, CriticalAlwaysHard: true}
}

// graduate implements spec.md §4.8.1's selection table exactly.
func graduate(mode Mode, severity catalog.Severity, sessionCount, historyCount int, th GraduationThresholds) ResponseLevel {
	criticalHard := severity == catalog.SeverityCritical && th.CriticalAlwaysHard

	switch mode {
	case ModeParanoid:
		return ResponseHardBlock
	case ModeLenient:
		if criticalHard {
			return ResponseHardBlock
		}
		if sessionCount >= th.SessionThreshold {
			return ResponseSoftBlock
		}
		return ResponseWarning
	case ModeStrict, ModeStandard:
		if criticalHard {
			return ResponseHardBlock
		}
		if historyCount >= th.HistoryThreshold {
			return ResponseHardBlock
		}
		if sessionCount >= th.SessionThreshold {
			return ResponseSoftBlock
		}
		return ResponseWarning
	default:
		// Unrecognized mode: fail toward the conservative standard profile
		// rather than panicking on bad config (spec.md §4.8.2 posture).
		return graduate(ModeStandard, severity, sessionCount, historyCount, th)
	}
}
