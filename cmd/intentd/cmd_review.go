package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"intentd/internal/types"

	"github.com/spf13/cobra"
)

// reviewCmd groups review-queue commands
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the correction review queue",
	Long: `Corrections from failed resolutions are never applied directly; they
wait in a review queue until a human approves them. These commands list
and resolve pending entries.`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review entries, oldest first",
	RunE:  runReviewList,
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve [review-id]",
	Short: "Mark a review entry as handled",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewResolve,
}

func init() {
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	pending, err := s.ledger.PendingReviews()
	if err != nil {
		return fmt.Errorf("failed to read review queue: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	}

	if len(pending) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}
	for _, e := range pending {
		suggested := e.SuggestedIntent
		if suggested == "" {
			suggested = "(none)"
		}
		fmt.Printf("%s  %s -> %s\n", e.ID, e.ResolvedIntent, suggested)
		fmt.Printf("    %q (resolution %s, %s)\n", e.OriginalText, e.ResolutionID, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d pending.\n", len(pending))
	return nil
}

func runReviewResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	reviewID := args[0]
	if err := s.ledger.MarkReviewed(reviewID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("no pending review entry %s", reviewID)
		}
		return err
	}
	fmt.Printf("Review %s resolved.\n", reviewID)
	return nil
}
