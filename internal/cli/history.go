// Package cli implements the history command.
package cli

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/dicklesworthstone/dcg/internal/output"
	"github.com/dicklesworthstone/dcg/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	flagHistoryRuleID string
	flagHistorySince  string
	flagHistoryLimit  int
)

func init() {
	historyCmd.AddCommand(historyQueryCmd)
	historyQueryCmd.Flags().StringVar(&flagHistoryRuleID, "rule-id", "", "filter by rule_id")
	historyQueryCmd.Flags().StringVar(&flagHistorySince, "since", "", "only show entries at or after this RFC3339 timestamp")
	historyQueryCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "max results to return (the most recent are kept, oldest first)")

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the cross-session observation history (history.jsonl)",
}

var historyQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Stream matching history.jsonl records",
	Long: `Stream matching history.jsonl records as NDJSON (or a single array in
other output formats).

Examples:
  dcg history query --rule-id core.filesystem:rm-root
  dcg history query --since 2026-07-01T00:00:00Z --limit 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.Getenv("DCG_HISTORY_PATH")
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = home + "/.config/dcg/history.jsonl"
		}

		var since time.Time
		if flagHistorySince != "" {
			t, err := time.Parse(time.RFC3339, flagHistorySince)
			if err != nil {
				return err
			}
			since = t
		}

		records, err := readHistory(path, flagHistoryRuleID, since, flagHistoryLimit)
		if err != nil {
			return err
		}

		out := output.New(output.Format(GetOutput()))
		if GetOutput() == "json" {
			for _, rec := range records {
				if err := out.WriteNDJSON(rec); err != nil {
					return err
				}
			}
			return nil
		}
		return out.Write(records)
	},
}

// readHistory scans path front-to-back and keeps the last limit matching
// records — reading forward and truncating to a trailing window rather
// than seeking from the end, since JSONL lines aren't fixed-width.
func readHistory(path, ruleID string, since time.Time, limit int) ([]tracker.HistoryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var matched []tracker.HistoryRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec tracker.HistoryRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if ruleID != "" && rec.RuleID != ruleID {
			continue
		}
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		matched = append(matched, rec)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}
