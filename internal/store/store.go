// Package store persists the feedback ledger state: issued resolutions,
// feedback records, golden records with embeddings, the review queue
// and the aggregate learning statistics. Everything lives in one
// user-local SQLite database.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"intentd/internal/logging"
)

// Store wraps the ledger database. All mutating operations serialize on
// the write lock; reads take the read lock.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the ledger store at dbPath, creating the schema
// if needed.
func Open(dbPath string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}

	logging.Store("Opening ledger store at: %s", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Ledger store opened")
	return s, nil
}

// initializeSchema creates all ledger tables.
func (s *Store) initializeSchema() error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.initializeSchema")
	defer timer.Stop()

	schema := `
	CREATE TABLE IF NOT EXISTS resolutions (
		resolution_id TEXT PRIMARY KEY,
		intent TEXT NOT NULL,
		input_text TEXT NOT NULL,
		confidence REAL NOT NULL,
		fallback_used INTEGER NOT NULL DEFAULT 0,
		embedding BLOB,
		resolved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_resolutions_resolved ON resolutions(resolved_at);

	CREATE TABLE IF NOT EXISTS feedback (
		resolution_id TEXT PRIMARY KEY REFERENCES resolutions(resolution_id),
		corrected_intent TEXT,
		was_successful INTEGER NOT NULL,
		submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS golden_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intent TEXT NOT NULL,
		utterance TEXT NOT NULL UNIQUE,
		weight REAL NOT NULL DEFAULT 1.0,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_golden_intent ON golden_records(intent);

	CREATE TABLE IF NOT EXISTS review_queue (
		id TEXT PRIMARY KEY,
		resolution_id TEXT NOT NULL,
		original_text TEXT NOT NULL,
		resolved_intent TEXT NOT NULL,
		suggested_intent TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		reviewed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status);

	CREATE TABLE IF NOT EXISTS learning_stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_feedbacks INTEGER NOT NULL DEFAULT 0,
		correct_feedbacks INTEGER NOT NULL DEFAULT 0,
		incorrect_feedbacks INTEGER NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		last_update DATETIME
	);
	INSERT OR IGNORE INTO learning_stats (id) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}

	logging.StoreDebug("Ledger schema initialized")
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Store("Closing ledger store")
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	return nil
}

// encodeFloat32SliceToBlob encodes a float32 slice as the little-endian
// binary blob format sqlite-vec expects.
func encodeFloat32SliceToBlob(vec []float32) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeFloat32SliceFromBlob decodes a binary blob back to float32s.
func decodeFloat32SliceFromBlob(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	reader := bytes.NewReader(blob)
	if err := binary.Read(reader, binary.LittleEndian, &vec); err != nil {
		return nil
	}
	return vec
}
