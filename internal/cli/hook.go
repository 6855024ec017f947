package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dicklesworthstone/dcg/internal/allowlist"
	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/config"
	"github.com/dicklesworthstone/dcg/internal/engine"
	"github.com/dicklesworthstone/dcg/internal/hookio"
	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/dicklesworthstone/dcg/internal/pending"
	"github.com/dicklesworthstone/dcg/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	hookCmd.AddCommand(hookRunCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(explainCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Claude Code PreToolUse hook integration",
}

var hookRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Read a hook envelope from stdin, emit the hook output contract, exit per spec.md §6",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, args)
	},
}

// runHook implements the default (no-subcommand) behavior: the process
// is invoked as the PreToolUse hook itself, reading the envelope on
// stdin and exiting with the spec's exit code (spec.md §6).
func runHook(cmd *cobra.Command, args []string) error {
	env, ok := hookio.ParseEnvelope(os.Stdin)
	if !ok {
		os.Exit(int(hookio.ExitAllow))
		return nil
	}
	command, _ := env.Command.(string)

	cfg, deps, opts, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dcg: config error: %v\n", err)
		os.Exit(int(hookio.ExitConfigError))
		return nil
	}
	_ = cfg

	sessionID := env.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID()
	}

	req := engine.CommandRequest{
		RawCommand: command,
		Cwd:        env.Cwd,
		SessionID:  sessionID,
		Now:        time.Now(),
	}

	occ := hookio.Occurrences{
		SessionThreshold: opts.Thresholds.SessionThreshold,
		HistoryThreshold: opts.Thresholds.HistoryThreshold,
	}

	decision := engine.Evaluate(req, deps, opts, nil)

	// Re-read counters after Evaluate for display; Evaluate has already
	// recorded this occurrence, so these are inclusive of it.
	if deny, ok := decision.(engine.Deny); ok && deps.Tracker != nil {
		st := deps.Tracker.LoadSession(sessionID, req.Now)
		occ.SessionCount = deps.Tracker.SessionCount(st, deny.RuleID)
		occ.HistoryCount = deps.Tracker.HistoryCount(deny.RuleID, opts.HistoryWindow, req.Now, req.Cwd, opts.Scope != engine.ScopeGlobal)
	}

	code, stdout, stderrBox := hookio.Render(decision, occ)
	if len(stdout) > 0 {
		os.Stdout.Write(stdout)
		os.Stdout.Write([]byte("\n"))
	}
	if stderrBox != "" {
		fmt.Fprintln(os.Stderr, stderrBox)
	}
	os.Exit(int(code))
	return nil
}

var explainCmd = &cobra.Command{
	Use:   "explain <command>",
	Short: "Evaluate a command and print the decision plus full trace (non-hook convenience)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, deps, opts, err := bootstrap()
		if err != nil {
			return err
		}
		project, err := projectPath()
		if err != nil {
			return err
		}

		req := engine.CommandRequest{
			RawCommand: args[0],
			Cwd:        project,
			SessionID:  defaultSessionID(),
			Now:        time.Now(),
		}
		trace := &engine.Trace{}
		decision := engine.Evaluate(req, deps, opts, trace)

		out := output.New(output.Format(GetOutput()), output.WithStats(GetStats()))
		return out.Write(map[string]any{
			"decision": decision,
			"trace":    trace.Steps,
		})
	},
}

// bootstrap loads configuration and constructs the engine's Dependencies
// and Options for a single CLI invocation.
func bootstrap() (config.Config, engine.Dependencies, engine.Options, error) {
	project, err := projectPath()
	if err != nil {
		return config.Config{}, engine.Dependencies{}, engine.Options{}, err
	}

	cfg, err := config.Load(config.LoadOptions{
		ProjectDir: project,
		ConfigPath: flagConfig,
	})
	if err != nil {
		return config.Config{}, engine.Dependencies{}, engine.Options{}, err
	}

	userPath, projPath := config.ConfigPaths(project, flagConfig)
	_ = userPath

	al, err := allowlist.Load(projPath, userPath, time.Now())
	if err != nil {
		al = &allowlist.List{}
	}

	pendingPath := os.Getenv("DCG_PENDING_EXCEPTIONS_PATH")
	if pendingPath == "" {
		pendingPath = pending.DefaultPath()
	}

	deps := engine.Dependencies{
		Catalog:   catalog.DefaultCatalog(),
		Allowlist: al,
		Pending:   pending.Open(pendingPath),
		Tracker:   tracker.New(tracker.Options{}),
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
		Scope:         engine.ResponseScope(cfg.Response.Scope),
		DisabledPacks: disabled,
	}
	return cfg, deps, opts, nil
}

// defaultSessionID derives a session identity from the hook process's
// parent shell per spec.md §4.7, using the hook process's own start time
// as a stand-in for the parent shell's (good enough for same-invocation
// occurrence tracking; a long-lived shell's true start time isn't
// portably queryable from a child process without /proc parsing).
func defaultSessionID() string {
	tty := os.Getenv("DCG_TTY")
	if tty == "" {
		tty, _ = os.Readlink("/proc/self/fd/0")
	}
	if tty == "" {
		// No controlling tty to key off of (stdin is a plain pipe, no
		// /proc): the deterministic hash would collide across unrelated
		// invocations that share a ppid, so mint a one-off identity instead.
		if ephemeralSessionID == "" {
			ephemeralSessionID = tracker.NewEphemeralSessionID()
		}
		return ephemeralSessionID
	}
	return tracker.SessionID(os.Getppid(), tty, processStart)
}

var processStart = time.Now()
var ephemeralSessionID string
