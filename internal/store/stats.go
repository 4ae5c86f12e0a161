package store

import (
	"database/sql"
	"fmt"

	"intentd/internal/types"
)

// GetStatistics returns a snapshot of the learning statistics. Reads
// are diagnostic and take only the read lock; the single-row update in
// SubmitFeedback keeps the counters consistent.
func (s *Store) GetStatistics() (types.LearningStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats types.LearningStatistics
	var lastUpdate sql.NullTime
	err := s.db.QueryRow(`
		SELECT total_feedbacks, correct_feedbacks, incorrect_feedbacks, accuracy, last_update
		FROM learning_stats WHERE id = 1
	`).Scan(&stats.TotalFeedbacks, &stats.CorrectFeedbacks, &stats.IncorrectFeedbacks, &stats.Accuracy, &lastUpdate)
	if err != nil {
		return types.LearningStatistics{}, fmt.Errorf("failed to read statistics: %w", err)
	}
	if lastUpdate.Valid {
		stats.LastUpdate = lastUpdate.Time
	}
	return stats, nil
}
