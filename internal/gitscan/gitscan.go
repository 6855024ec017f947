// Package gitscan implements the pre-commit file scanner and GitHub
// Action thin callers named in spec.md §1 ("the pre-commit file scanner,
// and the GitHub Action are treated as thin callers of the engine"). It
// shells out to the system `git` binary with os/exec rather than
// depending on go-git, matching the teacher's general git-plumbing idiom
// (the teacher repo shells out to `git` for status/diff/commit rather
// than vendoring a Git implementation) — the only surviving file from
// the teacher's own internal/git package was a test file with no
// corresponding source, and it covered a two-person-rule git-backed
// audit trail with no equivalent in this package, so it was not reused;
// this package is grounded on the shell-out idiom, not on any ported
// code.
package gitscan

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dicklesworthstone/dcg/internal/engine"
)

// Finding pairs a scanned line with the decision the engine made about
// it, for a file or a diff hunk.
type Finding struct {
	Path       string          `json:"path"`
	Line       int             `json:"line"`
	Command    string          `json:"command"`
	Decision   engine.Decision `json:"-"`
	DenyRuleID string          `json:"deny_rule_id,omitempty"`
	DenyReason string          `json:"deny_reason,omitempty"`
	Warned     bool            `json:"warned,omitempty"`
}

// Scanner runs the decision engine over file contents and git diffs. It
// holds no state beyond its engine dependencies — every call rebuilds
// its CommandRequest from scratch, matching spec.md §4.8's "a single
// CommandRequest -> Decision pipeline" framing.
type Scanner struct {
	Deps engine.Dependencies
	Opts engine.Options
}

// New returns a Scanner ready to evaluate shell lines.
func New(deps engine.Dependencies, opts engine.Options) *Scanner {
	return &Scanner{Deps: deps, Opts: opts}
}

// scannableExt is the set of file extensions worth scanning line-by-line
// as shell commands. Anything else is skipped: a pre-commit hook that
// tried to interpret every staged file as a shell script would be noisy
// past the point of usefulness.
var scannableExt = map[string]bool{
	".sh":   true,
	".bash": true,
	".zsh":  true,
}

// Scannable reports whether path's extension or shebang marks it as a
// shell script worth scanning. content may be nil, in which case only
// the extension is checked.
func Scannable(path string, content []byte) bool {
	for ext := range scannableExt {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	if len(content) == 0 {
		return false
	}
	firstLine := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		firstLine = content[:i]
	}
	return bytes.HasPrefix(firstLine, []byte("#!")) && bytes.Contains(firstLine, []byte("sh"))
}

// ScanFile evaluates every non-blank, non-comment line of a file's
// content as a standalone CommandRequest. It never reads from disk
// itself (the caller already has the content, whether from the working
// tree or from `git show`), so it works identically for a pre-commit
// hook's staged content and a GitHub Action's checked-out file.
func (s *Scanner) ScanFile(path string, content []byte) ([]Finding, error) {
	var findings []Finding
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req := engine.CommandRequest{RawCommand: line, Now: time.Now()}
		decision := engine.Evaluate(req, s.Deps, s.Opts, nil)
		f := Finding{Path: path, Line: lineNo, Command: line, Decision: decision}
		switch d := decision.(type) {
		case engine.Deny:
			f.DenyRuleID = d.RuleID
			f.DenyReason = d.Reason
			findings = append(findings, f)
		case engine.Warn:
			f.DenyRuleID = d.RuleID
			f.DenyReason = d.Reason
			f.Warned = true
			findings = append(findings, f)
		}
	}
	if err := scanner.Err(); err != nil {
		return findings, err
	}
	return findings, nil
}

// ScanDiff runs ScanFile over every line *added* between base and head
// in repoRoot, restricted to files ScanFile would otherwise consider
// (Scannable). Context lines and deletions are not evaluated: a command
// already present before this change is not something this commit is
// introducing.
func (s *Scanner) ScanDiff(ctx context.Context, repoRoot, base, head string) ([]Finding, error) {
	files, err := changedFiles(ctx, repoRoot, base, head)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, path := range files {
		added, err := addedLines(ctx, repoRoot, base, head, path)
		if err != nil {
			return findings, fmt.Errorf("diff %s: %w", path, err)
		}
		if len(added) == 0 {
			continue
		}
		content := []byte(strings.Join(added, "\n"))
		if !Scannable(path, content) {
			continue
		}
		fs, err := s.ScanFile(path, content)
		if err != nil {
			return findings, err
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func changedFiles(ctx context.Context, repoRoot, base, head string) ([]string, error) {
	out, err := runGit(ctx, repoRoot, "diff", "--name-only", base, head)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// addedLines returns every "+" line in the unified diff for path,
// stripped of the leading marker. Hunk headers and file-mode lines are
// skipped.
func addedLines(ctx context.Context, repoRoot, base, head, path string) ([]string, error) {
	out, err := runGit(ctx, repoRoot, "diff", "--unified=0", base, head, "--", path)
	if err != nil {
		return nil, err
	}
	var added []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") {
			added = append(added, line[1:])
		}
	}
	return added, nil
}

func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	if repoRoot == "" {
		return "", fmt.Errorf("gitscan: repoRoot must not be empty")
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}
