package store

import (
	"database/sql"
	"fmt"
	"time"

	"intentd/internal/logging"
)

// ResolutionRecord is the persisted trace of one issued VerifiedIntent,
// kept so later feedback can reference it within the retention window.
type ResolutionRecord struct {
	ResolutionID string
	Intent       string
	InputText    string
	Confidence   float64
	FallbackUsed bool
	Embedding    []float32 // query embedding, reused for golden records
	ResolvedAt   time.Time
}

// RecordResolution persists an issued resolution.
func (s *Store) RecordResolution(r ResolutionRecord) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.RecordResolution")
	defer timer.Stop()

	if r.ResolutionID == "" {
		return fmt.Errorf("resolution id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte
	if len(r.Embedding) > 0 {
		blob = encodeFloat32SliceToBlob(r.Embedding)
	}

	_, err := s.db.Exec(`
		INSERT INTO resolutions (resolution_id, intent, input_text, confidence, fallback_used, embedding, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ResolutionID, r.Intent, r.InputText, r.Confidence, boolToInt(r.FallbackUsed), blob, r.ResolvedAt.UTC())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record resolution %s: %v", r.ResolutionID, err)
		return fmt.Errorf("failed to record resolution: %w", err)
	}

	logging.StoreDebug("Resolution recorded: id=%s intent=%s confidence=%.3f", r.ResolutionID, r.Intent, r.Confidence)
	return nil
}

// LookupResolution fetches a resolution issued no earlier than the
// retention cutoff. Returns found=false for unknown or expired ids.
func (s *Store) LookupResolution(resolutionID string, retention time.Duration) (ResolutionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-retention)

	var r ResolutionRecord
	var fallback int
	var blob []byte
	err := s.db.QueryRow(`
		SELECT resolution_id, intent, input_text, confidence, fallback_used, embedding, resolved_at
		FROM resolutions
		WHERE resolution_id = ? AND resolved_at >= ?
	`, resolutionID, cutoff).Scan(
		&r.ResolutionID, &r.Intent, &r.InputText, &r.Confidence, &fallback, &blob, &r.ResolvedAt,
	)
	if err == sql.ErrNoRows {
		return ResolutionRecord{}, false, nil
	}
	if err != nil {
		return ResolutionRecord{}, false, fmt.Errorf("failed to look up resolution: %w", err)
	}

	r.FallbackUsed = fallback != 0
	r.Embedding = decodeFloat32SliceFromBlob(blob)
	return r, true, nil
}

// PruneResolutions removes resolutions older than the retention window
// that have no feedback attached. Returns the number pruned.
func (s *Store) PruneResolutions(retention time.Duration) (int, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.PruneResolutions")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	result, err := s.db.Exec(`
		DELETE FROM resolutions
		WHERE resolved_at < ?
		  AND resolution_id NOT IN (SELECT resolution_id FROM feedback)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune resolutions: %w", err)
	}

	pruned, _ := result.RowsAffected()
	if pruned > 0 {
		logging.Store("Pruned %d expired resolutions", pruned)
	}
	return int(pruned), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
