// Package cli: allowlist management (`dcg allowlist add|test`).
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dicklesworthstone/dcg/internal/allowlist"
	"github.com/dicklesworthstone/dcg/internal/config"
	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagAllowlistGlobal    bool
	flagAllowlistPrefix    bool
	flagAllowlistRegex     bool
	flagAllowlistReason    string
	flagAllowlistContext   string
	flagAllowlistExpiresIn string
)

func init() {
	allowlistAddCmd.Flags().BoolVar(&flagAllowlistGlobal, "global", false, "write to the user allowlist instead of the project one")
	allowlistAddCmd.Flags().BoolVar(&flagAllowlistPrefix, "prefix", false, "treat the argument as a command_prefix entry")
	allowlistAddCmd.Flags().BoolVar(&flagAllowlistRegex, "regex", false, "treat the argument as a pattern entry (requires --i-understand-the-risk)")
	allowlistAddCmd.Flags().StringVar(&flagAllowlistReason, "reason", "", "why this entry is safe to suppress")
	allowlistAddCmd.Flags().StringVar(&flagAllowlistContext, "context", "", "restrict a --prefix entry to a match context (spec.md §3 ContextTag)")
	allowlistAddCmd.Flags().StringVar(&flagAllowlistExpiresIn, "expires-in", "", "entry lifetime as a duration (e.g. 720h); empty means no expiry")
	allowlistAddCmd.Flags().Bool("i-understand-the-risk", false, "required alongside --regex, sets risk_acknowledged=true")

	allowlistCmd.AddCommand(allowlistAddCmd)
	allowlistCmd.AddCommand(allowlistTestCmd)
	rootCmd.AddCommand(allowlistCmd)
}

var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Manage the project/user allowlist (spec.md §4.5)",
}

var allowlistAddCmd = &cobra.Command{
	Use:   "add <command|prefix|pattern>",
	Short: "Append an allowlist entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectPath()
		if err != nil {
			return err
		}
		userPath, projPath := config.ConfigPaths(project, flagConfig)
		_ = userPath
		target := allowlistPath(project)
		_ = projPath

		riskAck, _ := cmd.Flags().GetBool("i-understand-the-risk")
		if flagAllowlistRegex && !riskAck {
			return fmt.Errorf("--regex requires --i-understand-the-risk (spec.md §4.5 AllowlistLoadError)")
		}

		line, err := renderAllowlistTOML(args[0], riskAck)
		if err != nil {
			return err
		}
		if err := appendToFile(target, line); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}

		out := output.New(output.Format(GetOutput()))
		out.Success(fmt.Sprintf("added allowlist entry to %s", target))
		return nil
	},
}

var allowlistTestCmd = &cobra.Command{
	Use:   "test <command>",
	Short: "Check whether a command would be suppressed by the current allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectPath()
		if err != nil {
			return err
		}
		userPath, projPath := config.ConfigPaths(project, flagConfig)
		list, err := allowlist.Load(projPath, userPath, time.Now())
		if err != nil {
			return err
		}
		entry, matched := list.Match(args[0], "")

		resp := map[string]any{"matched": matched}
		if matched {
			resp["kind"] = entry.Kind
			resp["source"] = entry.Source
			resp["reason"] = entry.Reason
		}
		for _, w := range list.Warnings {
			fmt.Fprintf(os.Stderr, "dcg: allowlist warning (%s): %s\n", w.Source, w.Detail)
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(resp)
	},
}

func allowlistPath(project string) string {
	if flagAllowlistGlobal {
		home, _ := os.UserHomeDir()
		return home + "/.config/dcg/allowlist.toml"
	}
	return project + "/.dcg/allowlist.toml"
}

func renderAllowlistTOML(arg string, riskAck bool) (string, error) {
	var b []byte
	b = append(b, "[[allow]]\n"...)
	switch {
	case flagAllowlistRegex:
		b = append(b, fmt.Sprintf("pattern = %q\n", arg)...)
		b = append(b, fmt.Sprintf("risk_acknowledged = %v\n", riskAck)...)
	case flagAllowlistPrefix:
		b = append(b, fmt.Sprintf("command_prefix = %q\n", arg)...)
	default:
		b = append(b, fmt.Sprintf("command = %q\n", arg)...)
	}
	if flagAllowlistContext != "" {
		b = append(b, fmt.Sprintf("context = %q\n", flagAllowlistContext)...)
	}
	if flagAllowlistReason != "" {
		b = append(b, fmt.Sprintf("reason = %q\n", flagAllowlistReason)...)
	}
	b = append(b, fmt.Sprintf("added_by = %q\n", GetActor())...)
	b = append(b, fmt.Sprintf("added_at = %q\n", time.Now().Format(time.RFC3339))...)
	if flagAllowlistExpiresIn != "" {
		d, err := time.ParseDuration(flagAllowlistExpiresIn)
		if err != nil {
			return "", fmt.Errorf("invalid --expires-in: %w", err)
		}
		b = append(b, fmt.Sprintf("expires_at = %q\n", time.Now().Add(d).Format(time.RFC3339))...)
	}
	return string(b), nil
}

func appendToFile(path, content string) error {
	if err := os.MkdirAll(dirOf(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
