package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"intentd/internal/catalog"
	"intentd/internal/index"
	"intentd/internal/matrix"
	"intentd/internal/normalize"
	"intentd/internal/store"
	"intentd/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// opencensus (pulled in transitively by google.golang.org/genai)
		// starts a background worker at package init that never exits.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// fixedEngine maps known texts to fixed vectors; unknown texts land on
// a far-away direction.
type fixedEngine struct {
	vectors map[string][]float32
	fail    bool
}

func (e *fixedEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, fmt.Errorf("embedding service down")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (e *fixedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fixedEngine) Dimensions() int { return 4 }
func (e *fixedEngine) Name() string    { return "fixed" }

func lightCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Intent{
		{
			ID:      catalog.NewID("turn_on_light"),
			Meaning: "light on",
			Req:     catalog.Requirements{Action: "turn_on", Type: catalog.TypeCommand},
		},
		{
			ID:      catalog.NewID("turn_off_light"),
			Meaning: "light off",
			Req:     catalog.Requirements{Action: "turn_off", Type: catalog.TypeCommand},
		},
		{
			ID:      catalog.NewID("ask_light_status"),
			Meaning: "is the light on",
			Req:     catalog.Requirements{Type: catalog.TypeQuery},
		},
	})
	require.NoError(t, err)
	return cat
}

func lightEngine() *fixedEngine {
	return &fixedEngine{vectors: map[string][]float32{
		"light on":         {1, 0, 0, 0},
		"light off":        {0, 1, 0, 0},
		"is the light on":  {0, 0, 1, 0},
		"is the light on?": {0, 0, 1, 0},
	}}
}

// brokenIndex builds a valid index, then flips its engine into failure
// so retrieval degrades at query time.
func brokenIndex(t *testing.T, cat *catalog.Catalog) *index.Index {
	t.Helper()
	eng := lightEngine()
	idx, err := index.Build(context.Background(), cat, eng, nil)
	require.NoError(t, err)
	eng.fail = true
	return idx
}

func newResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	cat := lightCatalog(t)
	idx, err := index.Build(context.Background(), cat, lightEngine(), nil)
	require.NoError(t, err)
	opts = append([]Option{WithNormalizer(normalize.Passthrough{})}, opts...)
	return New(cat, idx, matrix.NewDefault(), opts...)
}

func TestResolve_InputValidation(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		_, err := r.Resolve(ctx, "   ", types.ContextSnapshot{})
		var inputErr *types.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "text", inputErr.Field)
	})

	t.Run("invalid fidelity", func(t *testing.T) {
		_, err := r.Resolve(ctx, "light on", types.ContextSnapshot{Fidelity: 1.5})
		var inputErr *types.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "fidelity", inputErr.Field)
	})
}

func TestResolve_AcceptsConfidentMatch(t *testing.T) {
	r := newResolver(t)

	v, err := r.Resolve(context.Background(), "light on", types.ContextSnapshot{})
	require.NoError(t, err)

	assert.Equal(t, "turn_on_light", v.Intent.String())
	assert.False(t, v.FallbackUsed)
	assert.Empty(t, v.FallbackReason)
	assert.True(t, v.Stage1Passed)
	assert.True(t, v.Stage2Passed)
	assert.GreaterOrEqual(t, v.Confidence, DefaultConfidenceThreshold)
	assert.LessOrEqual(t, v.Confidence, 1.0)
	assert.NotEmpty(t, v.ResolutionID)
	assert.NotEmpty(t, v.Candidates)
	assert.NotEmpty(t, v.Factors)
	assert.False(t, v.ResolvedAt.IsZero())
}

func TestResolve_Deterministic(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()
	snap := types.ContextSnapshot{SystemState: "off", Location: "home"}

	first, err := r.Resolve(ctx, "light on", snap)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "light on", snap)
	require.NoError(t, err)

	// Identical inputs land on the identical decision; only the
	// resolution id and timestamp differ.
	assert.Equal(t, first.Intent, second.Intent)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Factors, second.Factors)
	assert.NotEqual(t, first.ResolutionID, second.ResolutionID)
}

func TestResolve_FallbackNoCandidates(t *testing.T) {
	cat := lightCatalog(t)
	r := New(cat, brokenIndex(t, cat), matrix.NewDefault(), WithNormalizer(normalize.Passthrough{}))

	v, err := r.Resolve(context.Background(), "light on", types.ContextSnapshot{})
	require.NoError(t, err)
	assert.True(t, v.Intent.IsFallback())
	assert.True(t, v.FallbackUsed)
	assert.Equal(t, types.FallbackNoCandidates, v.FallbackReason)
	assert.False(t, v.Stage1Passed)
	assert.False(t, v.Stage2Passed)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestResolve_FallbackAllExcluded(t *testing.T) {
	cat, err := catalog.New([]catalog.Intent{
		{
			ID:      catalog.NewID("configure_network"),
			Meaning: "light on", // same embedding target, expert-only audience
			Req:     catalog.Requirements{Audience: []string{"expert"}},
		},
	})
	require.NoError(t, err)
	idx, err := index.Build(context.Background(), cat, lightEngine(), nil)
	require.NoError(t, err)
	r := New(cat, idx, matrix.NewDefault(), WithNormalizer(normalize.Passthrough{}))

	v, err := r.Resolve(context.Background(), "light on", types.ContextSnapshot{UserProfile: "child"})
	require.NoError(t, err)
	assert.True(t, v.Intent.IsFallback())
	assert.Equal(t, types.FallbackAllExcluded, v.FallbackReason)
	assert.True(t, v.Stage1Passed)
	assert.False(t, v.Stage2Passed)
	assert.Equal(t, 0.0, v.Confidence)
	require.Len(t, v.Exclusions, 1)
	assert.Equal(t, types.ExcludedAudience, v.Exclusions[0].Reason)
}

func TestResolve_FallbackBelowThreshold(t *testing.T) {
	r := newResolver(t, WithThreshold(0.99))

	// Low-fidelity input discounts the adjusted score below the raised
	// threshold.
	v, err := r.Resolve(context.Background(), "light on", types.ContextSnapshot{Fidelity: 0.2})
	require.NoError(t, err)
	assert.True(t, v.Intent.IsFallback())
	assert.Equal(t, types.FallbackBelowThreshold, v.FallbackReason)
	assert.True(t, v.Stage1Passed)
	assert.False(t, v.Stage2Passed)
	// The near-miss confidence and factor trail are preserved for the
	// caller's clarification prompt.
	assert.Greater(t, v.Confidence, 0.0)
	assert.NotEmpty(t, v.Factors)
}

func TestResolve_SyntaxCueInferred(t *testing.T) {
	r := newResolver(t)

	v, err := r.Resolve(context.Background(), "is the light on?", types.ContextSnapshot{})
	require.NoError(t, err)
	require.False(t, v.FallbackUsed)
	assert.Equal(t, "ask_light_status", v.Intent.String())

	names := make([]string, 0, len(v.Factors))
	for _, f := range v.Factors {
		names = append(names, f.Factor)
	}
	// The trailing question mark reads as a question cue and as rising
	// intonation; both favor the query-type intent.
	assert.Contains(t, names, matrix.FactorIndicator)
	assert.Contains(t, names, matrix.FactorIntonation)
}

func TestResolve_RecordsToLedgerStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer st.Close()

	r := newResolver(t, WithLedgerStore(st))

	v, err := r.Resolve(context.Background(), "light on", types.ContextSnapshot{})
	require.NoError(t, err)

	rec, found, err := st.LookupResolution(v.ResolutionID, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "turn_on_light", rec.Intent)
	assert.Equal(t, "light on", rec.InputText)
	assert.NotEmpty(t, rec.Embedding)

	t.Run("fallback resolutions are recorded too", func(t *testing.T) {
		cat := lightCatalog(t)
		r2 := New(cat, brokenIndex(t, cat), matrix.NewDefault(),
			WithNormalizer(normalize.Passthrough{}), WithLedgerStore(st))

		v, err := r2.Resolve(context.Background(), "light on", types.ContextSnapshot{})
		require.NoError(t, err)

		rec, found, err := st.LookupResolution(v.ResolutionID, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, rec.FallbackUsed)
	})
}
