// Package cli: pending-exception commands (allow-once, confirm, pending list).
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dicklesworthstone/dcg/internal/config"
	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/dicklesworthstone/dcg/internal/pending"
	"github.com/dicklesworthstone/dcg/internal/tui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(allowOnceCmd)
	rootCmd.AddCommand(confirmCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending exceptions for the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectPath()
		if err != nil {
			return err
		}
		store := openPendingStore()

		type view struct {
			ShortCode       string `json:"short_code"`
			Command         string `json:"command"`
			CommandRedacted string `json:"command_redacted,omitempty"`
			Reason          string `json:"reason,omitempty"`
			SingleUse       bool   `json:"single_use"`
			CreatedAt       string `json:"created_at"`
			ExpiresAt       string `json:"expires_at"`
		}

		active := store.ActiveByCwd(project, time.Now())
		resp := make([]view, 0, len(active))
		for _, e := range active {
			resp = append(resp, view{
				ShortCode:       e.ShortCode,
				Command:         e.CommandRaw,
				CommandRedacted: e.CommandRedacted,
				Reason:          e.Reason,
				SingleUse:       e.SingleUse,
				CreatedAt:       e.CreatedAt.Format(time.RFC3339),
				ExpiresAt:       e.ExpiresAt.Format(time.RFC3339),
			})
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(resp)
	},
}

var allowOnceCmd = &cobra.Command{
	Use:   "allow-once <short_code>",
	Short: "Consume a pending exception's short code, permitting its command once more",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openPendingStore()
		now := time.Now()
		matches := store.LookupByShortCode(args[0], now)
		if len(matches) == 0 {
			return fmt.Errorf("no active exception for short code %q", args[0])
		}
		for _, e := range matches {
			if err := store.ConsumeByFullHash(e.FullHash, now); err != nil {
				return fmt.Errorf("consuming exception: %w", err)
			}
		}
		out := output.New(output.Format(GetOutput()))
		out.Success(fmt.Sprintf("consumed %d exception(s) for code %s", len(matches), args[0]))
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <short_code>",
	Short: "Confirm a soft-block exception via the interactive TTY challenge, falling back to allow-once when not interactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoadOptions{})
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !cfg.Interactive.Enabled || !tui.IsInteractive() {
			return allowOnceCmd.RunE(cmd, args)
		}

		store := openPendingStore()
		now := time.Now()
		matches := store.LookupByShortCode(args[0], now)
		if len(matches) == 0 {
			return fmt.Errorf("no active exception for short code %q", args[0])
		}

		confirmed, err := tui.Confirm(tui.ConfirmOptions{
			Command:        matches[0].CommandRaw,
			Reason:         matches[0].Reason,
			Verification:   cfg.Interactive.Verification,
			TimeoutSeconds: cfg.Interactive.TimeoutSeconds,
			CodeLength:     cfg.Interactive.CodeLength,
			MaxAttempts:    cfg.Interactive.MaxAttempts,
			LockoutSeconds: cfg.Interactive.LockoutSeconds,
		})
		if err != nil {
			if err == tui.ErrNoTTY {
				return allowOnceCmd.RunE(cmd, args)
			}
			return err
		}
		if !confirmed {
			return fmt.Errorf("confirmation declined or timed out for %s", args[0])
		}

		for _, e := range matches {
			if err := store.ConsumeByFullHash(e.FullHash, now); err != nil {
				return fmt.Errorf("consuming exception: %w", err)
			}
		}
		out := output.New(output.Format(GetOutput()))
		out.Success(fmt.Sprintf("confirmed %d exception(s) for code %s", len(matches), args[0]))
		return nil
	},
}

func openPendingStore() *pending.Store {
	path := os.Getenv("DCG_PENDING_EXCEPTIONS_PATH")
	if path == "" {
		path = pending.DefaultPath()
	}
	return pending.Open(path)
}
