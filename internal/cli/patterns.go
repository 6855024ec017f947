// Package cli: pattern-catalog inspection (`dcg pack list|show`).
package cli

import (
	"fmt"

	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/spf13/cobra"
)

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Inspect the bundled pattern catalog",
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every pack in the catalog, its tier, and pattern counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.DefaultCatalog()

		type view struct {
			ID               string `json:"id"`
			Tier             string `json:"tier"`
			SafeCount        int    `json:"safe_count"`
			DestructiveCount int    `json:"destructive_count"`
		}
		var resp []view
		for _, p := range cat.AllPacks() {
			resp = append(resp, view{
				ID:               p.ID,
				Tier:             string(p.Tier),
				SafeCount:        len(p.Safe),
				DestructiveCount: len(p.Destructive),
			})
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(resp)
	},
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack_id>",
	Short: "Show every pattern in one pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.DefaultCatalog()
		var found *catalog.Pack
		for _, p := range cat.AllPacks() {
			if p.ID == args[0] {
				found = p
				break
			}
		}
		if found == nil {
			return fmt.Errorf("unknown pack %q", args[0])
		}

		type patView struct {
			RuleID      string `json:"rule_id"`
			Name        string `json:"name"`
			Severity    string `json:"severity,omitempty"`
			Reason      string `json:"reason,omitempty"`
			Destructive bool   `json:"destructive"`
		}
		var resp []patView
		for _, p := range found.Safe {
			resp = append(resp, patView{RuleID: p.RuleID(), Name: p.Name})
		}
		for _, p := range found.Destructive {
			resp = append(resp, patView{
				RuleID:      p.RuleID(),
				Name:        p.Name,
				Severity:    string(p.Severity),
				Reason:      p.Reason,
				Destructive: true,
			})
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(resp)
	},
}
