// Package cli: live trace/history viewer (`dcg watch`).
package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dicklesworthstone/dcg/internal/tui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail and render decisions from history.jsonl as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return tui.Watch(ctx, tui.WatchOptions{})
	},
}
