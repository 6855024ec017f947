// Package cli implements the Cobra command-line interface for dcg, the
// destructive command guard invoked as a Claude Code PreToolUse hook.
package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/spf13/cobra"
)

// Version information set by goreleaser.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values.
var (
	flagConfig    string
	flagOutput    string
	flagJSON      bool
	flagTOON      bool
	flagStats     bool
	flagVerbose   bool
	flagActor     string
	flagSessionID string
	flagProject   string
)

var rootCmd = &cobra.Command{
	Use:   "dcg",
	Short: "Destructive Command Guard - blocks risky shell commands before an agent runs them",
	Long: `dcg evaluates shell commands against a tiered catalog of destructive
patterns before an AI coding agent is allowed to execute them.

Invoked as a Claude Code PreToolUse hook (reads a JSON envelope on stdin,
see 'dcg hook run'), or directly for inspection:

  dcg explain '<command>'       # show the decision and full trace
  dcg allow-once <code>         # consume a one-time exception
  dcg allowlist add <pattern>   # permanently suppress a rule
  dcg pack list                 # show bundled pattern packs
  dcg config get response.mode  # inspect configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagProject == "" {
			return nil
		}
		if err := os.Chdir(flagProject); err != nil {
			return fmt.Errorf("changing directory to %s: %w", flagProject, err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		goVersion := runtime.Version()
		userPath, projPath := configPathsForDisplay()

		payload := map[string]any{
			"version":      version,
			"commit":       commit,
			"build_date":   date,
			"go_version":   goVersion,
			"user_config":  userPath,
			"project_config": projPath,
		}

		switch GetOutput() {
		case "json", "yaml", "toon":
			out := output.New(output.Format(GetOutput()), output.WithStats(GetStats()))
			return out.Write(payload)
		case "text":
			fmt.Printf("dcg %s\n", version)
			fmt.Printf("  commit:         %s\n", commit)
			fmt.Printf("  built:          %s\n", date)
			fmt.Printf("  go:             %s\n", goVersion)
			fmt.Printf("  user config:    %s\n", userPath)
			fmt.Printf("  project config: %s\n", projPath)
			return nil
		default:
			return fmt.Errorf("unsupported format: %s", GetOutput())
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetOutput returns the configured output format. Precedence: CLI flags >
// DCG_FORMAT env > default text (spec.md §6 "Environment overrides").
func GetOutput() string {
	if flagJSON {
		return "json"
	}
	if flagTOON {
		return "toon"
	}
	if flagOutput != "text" {
		return flagOutput
	}
	if envFormat := os.Getenv("DCG_FORMAT"); envFormat != "" {
		switch envFormat {
		case "json", "yaml", "toon", "text":
			return envFormat
		}
	}
	return flagOutput
}

// GetStats returns whether to show TOON byte-savings statistics.
func GetStats() bool {
	return flagStats
}

// GetActor returns the identifier recorded for this invocation (used by
// allow-once/allowlist add for the "added_by" field).
func GetActor() string {
	if flagActor != "" {
		return flagActor
	}
	if actor := os.Getenv("DCG_ACTOR"); actor != "" {
		return actor
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	return user + "@" + host
}

// GetSessionID returns the session identifier, falling back to the
// SessionID helper's ppid/tty/start-time derivation if unset.
func GetSessionID() string {
	if flagSessionID != "" {
		return flagSessionID
	}
	return defaultSessionID()
}

func projectPath() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return pwd, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, yaml, toon (env: DCG_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagTOON, "toon", "t", false, "shorthand for --output=toon")
	rootCmd.PersistentFlags().BoolVar(&flagStats, "stats", false, "show token savings statistics (JSON vs TOON bytes)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "actor identifier recorded on allowlist/allow-once writes")
	rootCmd.PersistentFlags().StringVarP(&flagSessionID, "session-id", "s", "", "session ID (default: derived from parent pid/tty)")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")

	rootCmd.AddCommand(versionCmd)
}
