// Package embedding provides vector embedding generation for the
// semantic index. Supports multiple backends: Ollama (local) and
// Google GenAI (cloud), plus a deterministic in-process engine for
// tests and offline runs.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"intentd/internal/logging"
)

// =============================================================================
// ENGINE INTERFACE
// =============================================================================

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// HealthChecker is an optional interface for engines that can verify
// availability before batch operations.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama", "genai" or "static"
	Provider string `yaml:"provider" json:"provider"`

	// Ollama configuration
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"` // Default: "http://localhost:11434"
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`       // Default: "embeddinggemma"

	// GenAI configuration
	GenAIAPIKey string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model" json:"genai_model"` // Default: "gemini-embedding-001"

	// Static engine dimensionality (tests, offline)
	StaticDimensions int `yaml:"static_dimensions" json:"static_dimensions"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:         "ollama",
		OllamaEndpoint:   "http://localhost:11434",
		OllamaModel:      "embeddinggemma",
		GenAIModel:       "gemini-embedding-001",
		StaticDimensions: 64,
	}
}

// =============================================================================
// FACTORY
// =============================================================================

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("Creating embedding engine with provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama":
		var oe *OllamaEngine
		oe, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
		if err == nil {
			hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if herr := oe.HealthCheck(hctx); herr != nil {
				// Not fatal: the server may come up before the first embed.
				logging.Get(logging.CategoryEmbedding).Warn("Ollama health check failed: %v", herr)
			}
			cancel()
			engine = oe
		}
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "static":
		engine = NewStaticEngine(cfg.StaticDimensions)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'genai' or 'static')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("Embedding engine created: name=%s, dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// =============================================================================
// SIMILARITY UTILITIES
// =============================================================================

// CosineSimilarity computes the normalized dot product of two vectors,
// clamped to [0,1]. Anti-correlated vectors score 0 rather than
// negative so downstream additive scoring stays in range.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}

	if aMag == 0 || bMag == 0 {
		logging.Get(logging.CategoryEmbedding).Warn("CosineSimilarity: zero magnitude vector detected")
		return 0, nil
	}

	sim := dot / (math.Sqrt(aMag) * math.Sqrt(bMag))
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

// Neighbor is one nearest-neighbor search result.
type Neighbor struct {
	Index      int
	Similarity float64
}

// FindTopK returns the corpus indices most similar to the query,
// descending by cosine similarity. Equal similarities keep their
// corpus order, which callers rely on for deterministic tie-breaking.
func FindTopK(query []float32, corpus [][]float32, k int) ([]Neighbor, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "FindTopK")
	defer timer.Stop()

	if k <= 0 {
		k = 5
	}

	neighbors := make([]Neighbor, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: i, Similarity: sim})
	}

	if skipped > 0 {
		logging.Get(logging.CategoryEmbedding).Warn("FindTopK: skipped %d vectors due to dimension mismatch", skipped)
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	logging.EmbeddingDebug("FindTopK: returning %d of %d candidates (k=%d)", len(neighbors), len(corpus), k)
	return neighbors, nil
}
