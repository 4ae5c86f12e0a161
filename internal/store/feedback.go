package store

import (
	"database/sql"
	"fmt"
	"time"

	"intentd/internal/logging"
	"intentd/internal/types"
)

// FeedbackRow is one append-only feedback entry.
type FeedbackRow struct {
	ResolutionID    string
	CorrectedIntent string // empty when the caller gave no correction
	WasSuccessful   bool
	SubmittedAt     time.Time
}

// SubmitFeedback validates the referenced resolution, appends the
// feedback row and updates the learning statistics in one transaction,
// so concurrent submissions can never leave total != correct+incorrect.
//
// Returns types.ErrNotFound when the resolution id is unknown or
// outside the retention window, and types.ErrConflict when feedback for
// the id already exists.
func (s *Store) SubmitFeedback(row FeedbackRow, retention time.Duration) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.SubmitFeedback")
	defer timer.Stop()

	if row.ResolutionID == "" {
		return fmt.Errorf("resolution id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Resolution must exist and be inside the retention window.
	cutoff := time.Now().UTC().Add(-retention)
	var exists int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM resolutions
		WHERE resolution_id = ? AND resolved_at >= ?
	`, row.ResolutionID, cutoff).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check resolution: %w", err)
	}
	if exists == 0 {
		logging.StoreDebug("Feedback rejected, unknown or expired resolution: %s", row.ResolutionID)
		return fmt.Errorf("resolution %s: %w", row.ResolutionID, types.ErrNotFound)
	}

	// The ledger is append-only: a second submission for the same id is
	// a conflict, never an overwrite.
	var prior int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM feedback WHERE resolution_id = ?`, row.ResolutionID).Scan(&prior); err != nil {
		return fmt.Errorf("failed to check prior feedback: %w", err)
	}
	if prior > 0 {
		logging.StoreDebug("Feedback rejected, duplicate submission: %s", row.ResolutionID)
		return fmt.Errorf("resolution %s: %w", row.ResolutionID, types.ErrConflict)
	}

	var corrected sql.NullString
	if row.CorrectedIntent != "" {
		corrected = sql.NullString{String: row.CorrectedIntent, Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO feedback (resolution_id, corrected_intent, was_successful, submitted_at)
		VALUES (?, ?, ?, ?)
	`, row.ResolutionID, corrected, boolToInt(row.WasSuccessful), row.SubmittedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	correctDelta, incorrectDelta := 0, 1
	if row.WasSuccessful {
		correctDelta, incorrectDelta = 1, 0
	}
	if _, err := tx.Exec(`
		UPDATE learning_stats SET
			total_feedbacks = total_feedbacks + 1,
			correct_feedbacks = correct_feedbacks + ?,
			incorrect_feedbacks = incorrect_feedbacks + ?,
			accuracy = CAST(correct_feedbacks + ? AS REAL) / (total_feedbacks + 1),
			last_update = ?
		WHERE id = 1
	`, correctDelta, incorrectDelta, correctDelta, row.SubmittedAt.UTC()); err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}

	logging.Store("Feedback recorded: id=%s successful=%v corrected=%q",
		row.ResolutionID, row.WasSuccessful, row.CorrectedIntent)
	return nil
}

// GetFeedback fetches the feedback row for a resolution, if any.
func (s *Store) GetFeedback(resolutionID string) (FeedbackRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row FeedbackRow
	var corrected sql.NullString
	var successful int
	err := s.db.QueryRow(`
		SELECT resolution_id, corrected_intent, was_successful, submitted_at
		FROM feedback WHERE resolution_id = ?
	`, resolutionID).Scan(&row.ResolutionID, &corrected, &successful, &row.SubmittedAt)
	if err == sql.ErrNoRows {
		return FeedbackRow{}, false, nil
	}
	if err != nil {
		return FeedbackRow{}, false, fmt.Errorf("failed to fetch feedback: %w", err)
	}

	row.CorrectedIntent = corrected.String
	row.WasSuccessful = successful != 0
	return row, true, nil
}
