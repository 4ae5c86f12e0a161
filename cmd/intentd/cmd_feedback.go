package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"intentd/internal/store"
	"intentd/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	feedbackCorrect string
	feedbackFailed  bool
)

// feedbackCmd submits feedback for a prior resolution
var feedbackCmd = &cobra.Command{
	Use:   "feedback [resolution-id]",
	Short: "Submit feedback for a resolution",
	Long: `Records whether a resolution was right. Confirmed resolutions are
reinforced as golden records; corrections are queued for review.

Examples:
  intentd feedback 6f1c...                       # it was right
  intentd feedback 6f1c... --failed              # it was wrong, no alternative
  intentd feedback 6f1c... --correct turn_on_ac  # it was wrong, should have been turn_on_ac`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackCorrect, "correct", "", "The intent that should have been resolved")
	feedbackCmd.Flags().BoolVar(&feedbackFailed, "failed", false, "Mark the resolution as wrong without naming an alternative")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	resolutionID := args[0]
	wasSuccessful := feedbackCorrect == "" && !feedbackFailed

	record, err := s.ledger.Submit(resolutionID, feedbackCorrect, wasSuccessful)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return fmt.Errorf("resolution %s not found (expired or never existed)", resolutionID)
	case errors.Is(err, types.ErrConflict):
		if prior, found, ferr := s.st.GetFeedback(resolutionID); ferr == nil && found {
			return fmt.Errorf("feedback for %s was already submitted at %s (%s)",
				resolutionID, prior.SubmittedAt.Format("2006-01-02 15:04:05"), describeFeedback(prior))
		}
		return fmt.Errorf("feedback for %s was already submitted", resolutionID)
	case err != nil:
		return err
	}

	logger.Info("Feedback recorded",
		zap.String("resolution", record.ResolutionID),
		zap.Bool("successful", record.WasSuccessful))

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"resolution_id":    record.ResolutionID,
			"corrected_intent": record.CorrectedIntent.String(),
			"was_successful":   record.WasSuccessful,
			"submitted_at":     record.SubmittedAt,
		})
	}

	if record.WasSuccessful {
		fmt.Println("Feedback recorded: resolution confirmed.")
	} else if feedbackCorrect != "" {
		fmt.Printf("Feedback recorded: correction to %s queued for review.\n", feedbackCorrect)
	} else {
		fmt.Println("Feedback recorded: resolution marked wrong, queued for review.")
	}
	return nil
}

func describeFeedback(row store.FeedbackRow) string {
	switch {
	case row.WasSuccessful:
		return "confirmed"
	case row.CorrectedIntent != "":
		return "corrected to " + row.CorrectedIntent
	default:
		return "marked wrong"
	}
}
