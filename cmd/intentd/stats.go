package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"intentd/internal/store"
	"intentd/internal/types"

	"github.com/spf13/cobra"
)

// statsCmd shows learning statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feedback and learning statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.ledger.Statistics()
	if err != nil {
		return fmt.Errorf("failed to read statistics: %w", err)
	}

	pending, err := s.ledger.PendingReviews()
	if err != nil {
		return fmt.Errorf("failed to read review queue: %w", err)
	}

	goldenCount, err := s.st.GoldenCount()
	if err != nil {
		return fmt.Errorf("failed to count golden records: %w", err)
	}

	golden, err := s.st.GetGoldenRecords()
	if err != nil {
		return fmt.Errorf("failed to read golden records: %w", err)
	}

	if jsonOutput {
		top := make([]map[string]any, 0, len(golden))
		for _, g := range topGolden(golden, 5) {
			top = append(top, map[string]any{
				"intent":    g.Intent,
				"utterance": g.Utterance,
				"weight":    g.Weight,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"total_feedbacks":     stats.TotalFeedbacks,
			"correct_feedbacks":   stats.CorrectFeedbacks,
			"incorrect_feedbacks": stats.IncorrectFeedbacks,
			"accuracy":            stats.Accuracy,
			"last_update":         stats.LastUpdate,
			"golden_records":      goldenCount,
			"top_golden_records":  top,
			"pending_reviews":     len(pending),
		})
	}

	printStatistics(stats)
	fmt.Printf("Golden records:  %d\n", goldenCount)
	fmt.Printf("Pending review:  %d\n", len(pending))
	if top := topGolden(golden, 5); len(top) > 0 {
		fmt.Println("\nMost reinforced golden records:")
		for _, g := range top {
			fmt.Printf("  %-28s w=%.1f %q\n", g.Intent, g.Weight, g.Utterance)
		}
	}
	return nil
}

// topGolden returns the first n records. GetGoldenRecords already
// orders by weight descending.
func topGolden(records []store.GoldenRecord, n int) []store.GoldenRecord {
	if len(records) > n {
		return records[:n]
	}
	return records
}

func printStatistics(stats types.LearningStatistics) {
	fmt.Println("Learning Statistics")
	fmt.Println("===================")
	fmt.Printf("Total feedback:  %d\n", stats.TotalFeedbacks)
	fmt.Printf("Correct:         %d\n", stats.CorrectFeedbacks)
	fmt.Printf("Incorrect:       %d\n", stats.IncorrectFeedbacks)
	fmt.Printf("Accuracy:        %.1f%%\n", stats.Accuracy*100)
	if !stats.LastUpdate.IsZero() {
		fmt.Printf("Last update:     %s\n", stats.LastUpdate.Format("2006-01-02 15:04:05"))
	}
}
