// Package components: timeline rendering, used by `dcg watch` to list
// history records.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dicklesworthstone/dcg/internal/tui/theme"
)

// TimelineEvent is one rendered step of an engine.Trace: a pipeline
// stage (quick_reject, allowlist_check, pattern_eval, graduation, ...)
// and the outcome it produced.
type TimelineEvent struct {
	Stage     string
	Timestamp time.Time
	Outcome   string // allow | warn | deny | pending | fail_open | ""
	Details   string
}

// Timeline renders a sequence of TimelineEvents.
type Timeline struct {
	Events   []TimelineEvent
	Compact  bool
	Expanded bool
	Current  string
}

// NewTimeline creates a new timeline component.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// AddEvent adds an event to the timeline.
func (t *Timeline) AddEvent(stage string, ts time.Time, outcome, details string) *Timeline {
	t.Events = append(t.Events, TimelineEvent{Stage: stage, Timestamp: ts, Outcome: outcome, Details: details})
	return t
}

// WithCurrent marks the stage being actively evaluated; Render
// highlights it.
func (t *Timeline) WithCurrent(stage string) *Timeline {
	t.Current = stage
	return t
}

// AsCompact renders a single-line dot-and-arrow summary.
func (t *Timeline) AsCompact() *Timeline {
	t.Compact = true
	return t
}

// AsExpanded renders full per-step detail lines.
func (t *Timeline) AsExpanded() *Timeline {
	t.Expanded = true
	return t
}

// Render renders the timeline in whichever mode was selected.
func (t *Timeline) Render() string {
	if t.Compact {
		return t.renderCompact()
	}
	if t.Expanded {
		return t.renderExpanded()
	}
	return t.renderNormal()
}

func (t *Timeline) renderCompact() string {
	th := theme.Current
	var parts []string
	activeIdx := -1
	for i, ev := range t.Events {
		color := th.Overlay0
		if ev.Stage == t.Current {
			color = th.Mauve
			activeIdx = i
		} else if ev.Outcome != "" {
			color = th.DecisionColor(ev.Outcome)
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(color).Render("●"))
	}
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			arrowColor := th.Overlay0
			if activeIdx >= 0 && i <= activeIdx {
				arrowColor = th.Green
			}
			b.WriteString(lipgloss.NewStyle().Foreground(arrowColor).Render(" → "))
		}
		b.WriteString(part)
	}
	return b.String()
}

func (t *Timeline) renderNormal() string {
	th := theme.Current
	var lines []string
	for i, ev := range t.Events {
		isLast := i == len(t.Events)-1
		isCurrent := ev.Stage == t.Current

		color := th.Subtext
		if ev.Outcome != "" {
			color = th.DecisionColor(ev.Outcome)
		}

		connector := "│"
		node := "●"
		if isLast {
			connector = " "
		}
		if isCurrent {
			node = "◉"
		}

		nodeStyle := lipgloss.NewStyle().Foreground(color).Bold(isCurrent)
		connectorStyle := lipgloss.NewStyle().Foreground(th.Overlay0)
		stageLabel := lipgloss.NewStyle().Foreground(color).Bold(isCurrent).Render(strings.ToUpper(ev.Stage))

		timeStr := ""
		if !ev.Timestamp.IsZero() {
			timeStr = lipgloss.NewStyle().Foreground(th.Subtext).Render("  " + ev.Timestamp.Format("15:04:05.000"))
		}

		lines = append(lines, fmt.Sprintf("%s %s%s", nodeStyle.Render(node), stageLabel, timeStr))
		if !isLast {
			lines = append(lines, connectorStyle.Render(connector))
		}
	}
	return strings.Join(lines, "\n")
}

func (t *Timeline) renderExpanded() string {
	th := theme.Current
	var lines []string
	for i, ev := range t.Events {
		isLast := i == len(t.Events)-1
		isCurrent := ev.Stage == t.Current

		color := th.Subtext
		if ev.Outcome != "" {
			color = th.DecisionColor(ev.Outcome)
		}

		nodeStyle := lipgloss.NewStyle().Foreground(color).Bold(isCurrent)
		connectorStyle := lipgloss.NewStyle().Foreground(th.Overlay0)

		node := "●"
		if isCurrent {
			node = "◉"
		}
		stageLabel := lipgloss.NewStyle().Foreground(color).Bold(isCurrent).Render(strings.ToUpper(ev.Stage))

		lines = append(lines, fmt.Sprintf("%s %s", nodeStyle.Render(node), stageLabel))

		if !ev.Timestamp.IsZero() {
			ts := ev.Timestamp.Format("2006-01-02 15:04:05.000")
			lines = append(lines, connectorStyle.Render("│  ")+lipgloss.NewStyle().Foreground(th.Subtext).Render(ts))
		}
		if ev.Outcome != "" {
			lines = append(lines, connectorStyle.Render("│  ")+lipgloss.NewStyle().Foreground(color).Render("outcome: "+ev.Outcome))
		}
		if ev.Details != "" {
			lines = append(lines, connectorStyle.Render("│  ")+lipgloss.NewStyle().Foreground(th.Text).Render(ev.Details))
		}
		if !isLast {
			lines = append(lines, connectorStyle.Render("│"))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderTimeline is a convenience function to build and render a
// timeline in one call.
func RenderTimeline(events []TimelineEvent, current string) string {
	tl := NewTimeline().WithCurrent(current)
	tl.Events = events
	return tl.Render()
}

// RenderTimelineCompact is RenderTimeline's compact-mode equivalent.
func RenderTimelineCompact(events []TimelineEvent, current string) string {
	tl := NewTimeline().WithCurrent(current).AsCompact()
	tl.Events = events
	return tl.Render()
}
