// Package tui implements dcg's interactive collaborators: the TTY
// allow-once/confirm prompt (spec.md §6 `interactive.*`) and the
// `dcg watch` live trace viewer. Built on the Charmbracelet ecosystem —
// Bubble Tea, Bubbles, Lip Gloss — the same stack the teacher's own
// (unbuilt, stub-only) internal/tui package declared but never wired up;
// this file replaces that stub with a real Elm-architecture model
// instead of keeping its "SLB TUI - press q to quit" placeholder.
package tui

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/dicklesworthstone/dcg/internal/tui/components"
	"github.com/dicklesworthstone/dcg/internal/tui/styles"
	"github.com/dicklesworthstone/dcg/internal/tui/theme"
)

// ErrNoTTY is returned by Confirm when stdin/stdout isn't a real
// terminal: an interactive challenge has nothing to show (spec.md §6's
// interactive.enabled auto-detection point).
var ErrNoTTY = errors.New("tui: not attached to a terminal")

// ErrLockedOut is returned once the caller has exhausted MaxAttempts.
var ErrLockedOut = errors.New("tui: too many failed attempts, locked out")

// IsInteractive reports whether dcg is attached to a real terminal on
// both ends, the precondition for offering the confirm prompt at all.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ConfirmOptions describes one destructive-command confirmation
// challenge, built from a Deny/Warn decision plus the resolved
// interactive.* config (spec.md §6).
type ConfirmOptions struct {
	Command        string
	RuleID         string
	Severity       string // catalog.Severity
	Reason         string
	Verification   string // "code" | "command" | "none"
	TimeoutSeconds int
	CodeLength     int
	MaxAttempts    int
	LockoutSeconds int
}

// Confirm runs the interactive challenge described by opts and reports
// whether the operator confirmed intent to proceed. It never executes
// the command itself — the caller is responsible for turning a true
// result into a pending.Exception grant.
func Confirm(opts ConfirmOptions) (bool, error) {
	if !IsInteractive() {
		return false, ErrNoTTY
	}
	if opts.Verification == "none" {
		return confirmYesNo(opts)
	}

	challenge := opts.Command
	if opts.Verification == "code" {
		challenge = generateCode(opts.CodeLength)
	}

	m := newConfirmModel(opts, challenge)
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("running confirm prompt: %w", err)
	}
	final := result.(confirmModel)
	if final.lockedOut {
		return false, ErrLockedOut
	}
	return final.confirmed, nil
}

func generateCode(length int) string {
	if length < 4 {
		length = 4
	}
	const digits = "0123456789"
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			// crypto/rand failing is not something a confirm prompt should
			// crash over; fall back to '0' for this digit. The challenge is
			// still shown to and checked against the operator as usual.
			out[i] = '0'
			continue
		}
		out[i] = digits[n.Int64()]
	}
	return string(out)
}

// confirmModel is the Bubble Tea model backing the code/command retype
// challenge. Entirely self-contained: no network or filesystem I/O, so
// its Update function is pure state transitions over key and tick
// messages.
type confirmModel struct {
	opts      ConfirmOptions
	challenge string
	input     textinput.Model
	attempts  int
	deadline  time.Time
	remaining time.Duration
	confirmed bool
	lockedOut bool
	message   string
	quitting  bool
}

func newConfirmModel(opts ConfirmOptions, challenge string) confirmModel {
	ti := textinput.New()
	ti.Placeholder = challenge
	ti.Focus()
	ti.CharLimit = 256
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	return confirmModel{
		opts:      opts,
		challenge: challenge,
		input:     ti,
		deadline:  time.Now().Add(timeout),
		remaining: timeout,
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m confirmModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if strings.TrimSpace(m.input.Value()) == m.challenge {
				m.confirmed = true
				m.quitting = true
				return m, tea.Quit
			}
			m.attempts++
			m.input.SetValue("")
			if m.attempts >= m.opts.MaxAttempts {
				m.lockedOut = true
				m.quitting = true
				return m, tea.Quit
			}
			m.message = fmt.Sprintf("incorrect, %d attempt(s) remaining", m.opts.MaxAttempts-m.attempts)
			return m, nil
		}
	case tickMsg:
		m.remaining = time.Until(m.deadline)
		if m.remaining <= 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	if m.quitting {
		return ""
	}
	s := styles.New()
	box := components.NewCommandBox(m.opts.Command).WithHint(false).RenderFull()

	var b strings.Builder
	b.WriteString(s.Title.Render("dcg: destructive command blocked") + "\n\n")
	if m.opts.RuleID != "" {
		b.WriteString(s.RenderSeverityBadge(m.opts.Severity) + "  " + s.Dimmed.Render(m.opts.RuleID) + "\n\n")
	}
	b.WriteString(box + "\n")
	if m.opts.Reason != "" {
		b.WriteString(s.Subtitle.Render(m.opts.Reason) + "\n")
	}
	b.WriteString("\n")

	switch m.opts.Verification {
	case "command":
		b.WriteString(s.Normal.Render("Retype the command above exactly to proceed:") + "\n")
	default:
		b.WriteString(s.Normal.Render(fmt.Sprintf("Enter the code %s to proceed:", s.Highlight.Render(m.challenge))) + "\n")
	}
	b.WriteString(m.input.View() + "\n\n")

	remaining := m.remaining.Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	b.WriteString(s.Dimmed.Render(fmt.Sprintf("%s remaining · attempt %d/%d · esc to cancel", remaining, m.attempts+1, m.opts.MaxAttempts)))
	if m.message != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(theme.Current.Red).Render(m.message))
	}
	return s.Border.Render(b.String())
}

func confirmYesNo(opts ConfirmOptions) (bool, error) {
	m := yesNoModel{opts: opts}
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("running confirm prompt: %w", err)
	}
	return result.(yesNoModel).confirmed, nil
}

type yesNoModel struct {
	opts      ConfirmOptions
	confirmed bool
	quitting  bool
}

func (m yesNoModel) Init() tea.Cmd { return nil }

func (m yesNoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch strings.ToLower(key.String()) {
		case "y":
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit
		case "n", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m yesNoModel) View() string {
	if m.quitting {
		return ""
	}
	s := styles.New()
	box := components.NewCommandBox(m.opts.Command).WithHint(false).RenderFull()
	return s.Border.Render(
		s.Title.Render("dcg: destructive command blocked") + "\n\n" +
			box + "\n\n" +
			s.Normal.Render("Proceed anyway? [y/N]"),
	)
}
