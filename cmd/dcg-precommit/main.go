// Command dcg-precommit is the pre-commit/CI thin caller described in
// spec.md §1 ("the pre-commit file scanner, and the GitHub Action are
// treated as thin callers of the engine"). It has two modes: scan a list
// of files directly (pre-commit git hook, given staged paths), or scan
// the lines added between two git revisions (GitHub Action, given
// --base/--head). Both modes delegate entirely to internal/gitscan and
// exit non-zero only on a Deny finding — a Warn finding is printed but
// does not fail the commit/run, matching spec.md §4.8.1's "warning"
// response level never being a block.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dicklesworthstone/dcg/internal/allowlist"
	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/config"
	"github.com/dicklesworthstone/dcg/internal/engine"
	"github.com/dicklesworthstone/dcg/internal/gitscan"
	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagRepoRoot string
	flagBase     string
	flagHead     string
	flagOutput   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dcg-precommit: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dcg-precommit [files...]",
	Short: "Scan staged files or a git diff range for destructive commands before they land",
	Long: `With no --base/--head, scans each file argument directly (the
pre-commit hook use case: pass the staged file paths). With --base and
--head set, scans only the lines added between those two revisions in
--repo-root (the GitHub Action use case: pass the PR's merge-base and
head SHA).`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagRepoRoot, "repo-root", ".", "git repository root (diff mode only)")
	rootCmd.Flags().StringVar(&flagBase, "base", "", "base revision for diff mode")
	rootCmd.Flags().StringVar(&flagHead, "head", "", "head revision for diff mode")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "text", "output format: text|json|yaml")
}

func run(cmd *cobra.Command, args []string) error {
	deps, opts, err := bootstrap()
	if err != nil {
		return err
	}
	scanner := gitscan.New(deps, opts)

	var findings []gitscan.Finding
	if flagBase != "" || flagHead != "" {
		if flagBase == "" || flagHead == "" {
			return fmt.Errorf("--base and --head must be set together")
		}
		findings, err = scanner.ScanDiff(context.Background(), flagRepoRoot, flagBase, flagHead)
		if err != nil {
			return err
		}
	} else {
		for _, path := range args {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if !gitscan.Scannable(path, content) {
				continue
			}
			fs, err := scanner.ScanFile(path, content)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			findings = append(findings, fs...)
		}
	}

	out := output.New(output.Format(flagOutput))
	if err := out.Write(findings); err != nil {
		return err
	}

	denyCount := 0
	for _, f := range findings {
		if !f.Warned {
			denyCount++
		}
	}
	if denyCount > 0 {
		os.Exit(1)
	}
	return nil
}

// bootstrap mirrors internal/cli's hook bootstrap but omits the
// session/pending stores: a pre-commit or CI scan has no interactive
// agent session and no pending-exception queue to consult or record
// into, only the catalog/allowlist/config layers that classify a bare
// line of shell.
func bootstrap() (engine.Dependencies, engine.Options, error) {
	cfg, err := config.Load(config.LoadOptions{ProjectDir: flagRepoRoot})
	if err != nil {
		return engine.Dependencies{}, engine.Options{}, err
	}

	userPath, projPath := config.ConfigPaths(flagRepoRoot, "")
	al, err := allowlist.Load(projPath, userPath, time.Now())
	if err != nil {
		al = &allowlist.List{}
	}

	deps := engine.Dependencies{
		Catalog:   catalog.DefaultCatalog(),
		Allowlist: al,
	}

	disabled := map[string]bool{}
	for _, p := range cfg.Packs.Disabled {
		disabled[p] = true
	}

	opts := engine.Options{
		Mode: engine.Mode(cfg.Response.Mode),
		Thresholds: engine.GraduationThresholds{
			SessionThreshold:   cfg.Response.SessionThreshold,
			HistoryThreshold:   cfg.Response.HistoryThreshold,
			CriticalAlwaysHard: cfg.Response.CriticalAlwaysHard,
		},
		HistoryWindow: cfg.HistoryWindowDuration(),
		DisabledPacks: disabled,
	}
	return deps, opts, nil
}
