// Package cli: derived analytics over history.jsonl (`dcg stats`),
// backed by the rebuildable sqlite index in internal/report.
package cli

import (
	"os"
	"time"

	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/dicklesworthstone/dcg/internal/report"
	"github.com/dicklesworthstone/dcg/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	flagStatsSince string
	flagStatsLimit int
)

func init() {
	statsCmd.Flags().StringVar(&flagStatsSince, "since", "", "only count entries at or after this RFC3339 timestamp (default 30d ago)")
	statsCmd.Flags().IntVar(&flagStatsLimit, "limit", 20, "max rules to report, most frequent first")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Rebuild the sqlite report index from history.jsonl and show the most-triggered rules",
	Long: `Rebuilds internal/report's sqlite index from history.jsonl (the
canonical log stays the source of truth; the index is disposable and
rebuilt wholesale on every invocation) and reports the rules most often
denied or warned since a cutoff.

Examples:
  dcg stats
  dcg stats --since 2026-07-01T00:00:00Z --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		historyPath := os.Getenv("DCG_HISTORY_PATH")
		if historyPath == "" {
			historyPath = tracker.New(tracker.Options{}).HistoryPath()
		}

		since := time.Now().Add(-tracker.DefaultMaxHistoryAge)
		if flagStatsSince != "" {
			t, err := time.Parse(time.RFC3339, flagStatsSince)
			if err != nil {
				return err
			}
			since = t
		}

		dbPath := os.Getenv("DCG_REPORT_DB_PATH")
		db, err := report.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		recordCount, err := db.RebuildFromJSONL(cmd.Context(), historyPath)
		if err != nil {
			return err
		}

		top, err := db.TopRules(since, flagStatsLimit)
		if err != nil {
			return err
		}

		type statsView struct {
			Since         time.Time          `json:"since"`
			RecordsLoaded int                `json:"records_loaded"`
			TopRules      []report.RuleCount `json:"top_rules"`
		}
		out := output.New(output.Format(GetOutput()), output.WithStats(GetStats()))
		return out.Write(statsView{Since: since, RecordsLoaded: recordCount, TopRules: top})
	},
}
