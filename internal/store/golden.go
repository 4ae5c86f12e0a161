package store

import (
	"fmt"
	"time"

	"intentd/internal/embedding"
	"intentd/internal/logging"
)

// GoldenRecord is a resolution confirmed correct by feedback. Its
// embedding lets future requests shortcut to the confirmed intent.
type GoldenRecord struct {
	ID        int64
	Intent    string
	Utterance string
	Weight    float64 // reinforcement weight, grows with repeat confirmations
	CreatedAt time.Time
}

// GoldenMatch is one golden-record search hit.
type GoldenMatch struct {
	Intent     string
	Utterance  string
	Weight     float64
	Similarity float64
}

// goldenVecTable lazily creates the sqlite-vec virtual table. Failure
// is non-fatal: search falls back to brute force.
func (s *Store) ensureGoldenVecTable(dims int) {
	vecTable := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_golden USING vec0(
			embedding float[%d],
			intent TEXT,
			utterance TEXT
		);
	`, dims)
	if _, err := s.db.Exec(vecTable); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to create vec_golden table (sqlite-vec may not be available): %v", err)
	}
}

// AddGoldenRecord stores a confirmed exemplar. Re-confirming the same
// utterance reinforces its weight instead of duplicating it.
func (s *Store) AddGoldenRecord(intent, utterance string, emb []float32) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.AddGoldenRecord")
	defer timer.Stop()

	if intent == "" || utterance == "" {
		return fmt.Errorf("intent and utterance required")
	}
	if len(emb) == 0 {
		return fmt.Errorf("embedding required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blob := encodeFloat32SliceToBlob(emb)

	if _, err := s.db.Exec(`
		INSERT INTO golden_records (intent, utterance, weight, embedding, updated_at)
		VALUES (?, ?, 1.0, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(utterance) DO UPDATE SET
			intent = excluded.intent,
			weight = MIN(2.0, weight + 0.1),
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP
	`, intent, utterance, blob); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to insert golden record: %v", err)
		return fmt.Errorf("failed to insert golden record: %w", err)
	}

	s.ensureGoldenVecTable(len(emb))
	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO vec_golden (embedding, intent, utterance)
		VALUES (?, ?, ?)
	`, blob, intent, utterance); err != nil {
		// Non-fatal: vec table might not exist
		logging.Get(logging.CategoryStore).Warn("Failed to insert into vec_golden (ANN may be unavailable): %v", err)
	}

	logging.Store("Golden record added: intent=%s utterance=%q", intent, utterance)
	return nil
}

// SearchGolden performs nearest-neighbor search over golden records.
// Tries the sqlite-vec table first and falls back to brute force.
func (s *Store) SearchGolden(queryEmbedding []float32, topK int) ([]GoldenMatch, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.SearchGolden")
	defer timer.Stop()

	if topK <= 0 {
		topK = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("ledger store not initialized")
	}

	matches, err := s.searchGoldenVec(queryEmbedding, topK)
	if err != nil {
		logging.StoreDebug("Falling back to brute-force golden search: %v", err)
		return s.searchGoldenBruteForce(queryEmbedding, topK)
	}
	return matches, nil
}

// searchGoldenVec performs ANN search using sqlite-vec.
func (s *Store) searchGoldenVec(queryEmbedding []float32, topK int) ([]GoldenMatch, error) {
	queryBlob := encodeFloat32SliceToBlob(queryEmbedding)

	rows, err := s.db.Query(`
		SELECT
			gr.intent,
			gr.utterance,
			gr.weight,
			vec_distance_cosine(vg.embedding, ?) AS distance
		FROM vec_golden vg
		JOIN golden_records gr ON vg.utterance = gr.utterance
		ORDER BY distance ASC
		LIMIT ?
	`, queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	var matches []GoldenMatch
	for rows.Next() {
		var m GoldenMatch
		var distance float64
		if err := rows.Scan(&m.Intent, &m.Utterance, &m.Weight, &distance); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to scan golden record row: %v", err)
			continue
		}
		m.Similarity = 1.0 - distance
		if m.Similarity < 0 {
			m.Similarity = 0
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// searchGoldenBruteForce computes cosine similarity over every record.
func (s *Store) searchGoldenBruteForce(queryEmbedding []float32, topK int) ([]GoldenMatch, error) {
	rows, err := s.db.Query(`SELECT intent, utterance, weight, embedding FROM golden_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query golden records: %w", err)
	}
	defer rows.Close()

	var (
		metas  []GoldenMatch
		corpus [][]float32
	)
	for rows.Next() {
		var m GoldenMatch
		var blob []byte
		if err := rows.Scan(&m.Intent, &m.Utterance, &m.Weight, &blob); err != nil {
			continue
		}
		emb := decodeFloat32SliceFromBlob(blob)
		if len(emb) == 0 {
			continue
		}
		metas = append(metas, m)
		corpus = append(corpus, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating golden records: %w", err)
	}

	neighbors, err := embedding.FindTopK(queryEmbedding, corpus, topK)
	if err != nil {
		return nil, fmt.Errorf("golden similarity search failed: %w", err)
	}
	matches := make([]GoldenMatch, 0, len(neighbors))
	for _, n := range neighbors {
		m := metas[n.Index]
		m.Similarity = n.Similarity
		matches = append(matches, m)
	}
	return matches, nil
}

// GoldenCount returns the number of stored golden records.
func (s *Store) GoldenCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM golden_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count golden records: %w", err)
	}
	return count, nil
}

// GetGoldenRecords returns all golden records, strongest first.
func (s *Store) GetGoldenRecords() ([]GoldenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, intent, utterance, weight, created_at
		FROM golden_records
		ORDER BY weight DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query golden records: %w", err)
	}
	defer rows.Close()

	var records []GoldenRecord
	for rows.Next() {
		var r GoldenRecord
		if err := rows.Scan(&r.ID, &r.Intent, &r.Utterance, &r.Weight, &r.CreatedAt); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
