package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// =============================================================================
// STATIC EMBEDDING ENGINE
// =============================================================================

// StaticEngine produces deterministic hashed bag-of-words vectors with
// no external service. Texts sharing tokens land on shared dimensions,
// which is enough signal for tests and offline smoke runs. Not a
// substitute for a real model in production.
type StaticEngine struct {
	dims int
}

// NewStaticEngine creates a static engine with the given dimensionality.
func NewStaticEngine(dims int) *StaticEngine {
	if dims <= 0 {
		dims = 64
	}
	return &StaticEngine{dims: dims}
}

// Embed hashes each token into a dimension and L2-normalizes the result.
func (e *StaticEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec, nil
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dims] += 1.0
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *StaticEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the configured dimensionality.
func (e *StaticEngine) Dimensions() int {
	return e.dims
}

// Name returns the engine name.
func (e *StaticEngine) Name() string {
	return fmt.Sprintf("static:%d", e.dims)
}
