package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("orthogonal vectors", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("anti-correlated clamps to zero", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("empty vectors", func(t *testing.T) {
		_, err := CosineSimilarity(nil, nil)
		assert.Error(t, err)
	})

	t.Run("zero magnitude", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0, 0}
	corpus := [][]float32{
		{0, 1, 0},       // orthogonal
		{1, 0, 0},       // exact
		{0.9, 0.1, 0},   // close
		{0.5, 0.5, 0},   // middling
	}

	t.Run("orders by similarity", func(t *testing.T) {
		got, err := FindTopK(query, corpus, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 1, got[0].Index)
		assert.Equal(t, 2, got[1].Index)
		assert.Equal(t, 3, got[2].Index)
	})

	t.Run("ties keep corpus order", func(t *testing.T) {
		tied := [][]float32{
			{0, 1, 0},
			{1, 0, 0},
			{2, 0, 0}, // same direction as index 1
		}
		got, err := FindTopK(query, tied, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Index)
		assert.Equal(t, 2, got[1].Index)
	})

	t.Run("k defaults when nonpositive", func(t *testing.T) {
		got, err := FindTopK(query, corpus, 0)
		require.NoError(t, err)
		assert.Len(t, got, 4) // corpus smaller than default k=5
	})

	t.Run("skips mismatched dimensions", func(t *testing.T) {
		mixed := [][]float32{{1, 0, 0}, {1, 0}}
		got, err := FindTopK(query, mixed, 5)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestStaticEngine(t *testing.T) {
	e := NewStaticEngine(64)
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		a, err := e.Embed(ctx, "turn on the light")
		require.NoError(t, err)
		b, err := e.Embed(ctx, "turn on the light")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unit norm", func(t *testing.T) {
		v, err := e.Embed(ctx, "hello world")
		require.NoError(t, err)
		sim, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-6)
	})

	t.Run("shared tokens raise similarity", func(t *testing.T) {
		light, _ := e.Embed(ctx, "turn on the light")
		lamp, _ := e.Embed(ctx, "turn on the lamp")
		other, _ := e.Embed(ctx, "what is the weather tomorrow")

		simClose, err := CosineSimilarity(light, lamp)
		require.NoError(t, err)
		simFar, err := CosineSimilarity(light, other)
		require.NoError(t, err)
		assert.Greater(t, simClose, simFar)
	})

	t.Run("empty text embeds to zero vector", func(t *testing.T) {
		v, err := e.Embed(ctx, "")
		require.NoError(t, err)
		assert.Len(t, v, 64)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		batch, err := e.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, batch, 2)
		single, _ := e.Embed(ctx, "b")
		assert.Equal(t, single, batch[1])
	})

	t.Run("metadata", func(t *testing.T) {
		assert.Equal(t, 64, e.Dimensions())
		assert.Equal(t, "static:64", e.Name())
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("static provider", func(t *testing.T) {
		e, err := NewEngine(Config{Provider: "static", StaticDimensions: 32})
		require.NoError(t, err)
		assert.Equal(t, 32, e.Dimensions())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEngine(Config{Provider: "carrier-pigeon"})
		assert.Error(t, err)
	})

	t.Run("ollama provider pings the server", func(t *testing.T) {
		var tagHits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/tags" {
				atomic.AddInt32(&tagHits, 1)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		e, err := NewEngine(Config{Provider: "ollama", OllamaEndpoint: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, "ollama:embeddinggemma", e.Name())
		assert.EqualValues(t, 1, atomic.LoadInt32(&tagHits))
	})

	t.Run("ollama provider survives an unreachable server", func(t *testing.T) {
		e, err := NewEngine(Config{Provider: "ollama", OllamaEndpoint: "http://127.0.0.1:1"})
		require.NoError(t, err)
		assert.NotNil(t, e)
	})
}
