package store

import (
	"database/sql"
	"fmt"
	"time"

	"intentd/internal/logging"
	"intentd/internal/types"
)

// Review queue statuses.
const (
	ReviewPending  = "pending"
	ReviewResolved = "resolved"
)

// ReviewEntry is a correction held for human inspection. Corrections
// never feed back into factor weights automatically; a reviewer decides.
type ReviewEntry struct {
	ID              string // review_NNNNNN
	ResolutionID    string
	OriginalText    string
	ResolvedIntent  string
	SuggestedIntent string // caller's correction, may be empty
	Status          string
	CreatedAt       time.Time
}

// EnqueueReview adds a correction to the review queue and returns the
// assigned review id.
func (s *Store) EnqueueReview(e ReviewEntry) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.EnqueueReview")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM review_queue`).Scan(&count); err != nil {
		return "", fmt.Errorf("failed to count review entries: %w", err)
	}
	reviewID := fmt.Sprintf("review_%06d", count+1)

	var suggested sql.NullString
	if e.SuggestedIntent != "" {
		suggested = sql.NullString{String: e.SuggestedIntent, Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO review_queue (id, resolution_id, original_text, resolved_intent, suggested_intent, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, reviewID, e.ResolutionID, e.OriginalText, e.ResolvedIntent, suggested, ReviewPending); err != nil {
		return "", fmt.Errorf("failed to enqueue review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit review entry: %w", err)
	}

	logging.Store("Review queued: id=%s resolution=%s suggested=%q", reviewID, e.ResolutionID, e.SuggestedIntent)
	return reviewID, nil
}

// PendingReviews lists entries awaiting inspection, oldest first.
func (s *Store) PendingReviews() ([]ReviewEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, resolution_id, original_text, resolved_intent, suggested_intent, status, created_at
		FROM review_queue
		WHERE status = ?
		ORDER BY created_at ASC
	`, ReviewPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer rows.Close()

	var entries []ReviewEntry
	for rows.Next() {
		var e ReviewEntry
		var suggested sql.NullString
		if err := rows.Scan(&e.ID, &e.ResolutionID, &e.OriginalText, &e.ResolvedIntent, &suggested, &e.Status, &e.CreatedAt); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to scan review entry: %v", err)
			continue
		}
		e.SuggestedIntent = suggested.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkReviewed resolves a pending review entry.
func (s *Store) MarkReviewed(reviewID string) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.MarkReviewed")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE review_queue
		SET status = ?, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, ReviewResolved, reviewID, ReviewPending)
	if err != nil {
		return fmt.Errorf("failed to mark review: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("review %s: %w", reviewID, types.ErrNotFound)
	}

	logging.Store("Review resolved: %s", reviewID)
	return nil
}
