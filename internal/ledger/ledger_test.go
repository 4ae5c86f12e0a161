package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"intentd/internal/catalog"
	"intentd/internal/store"
	"intentd/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat, err := catalog.New([]catalog.Intent{
		{ID: catalog.NewID("turn_on_light")},
		{ID: catalog.NewID("turn_off_light")},
	})
	require.NoError(t, err)

	return New(st, cat, 24*time.Hour), st
}

func recordResolution(t *testing.T, st *store.Store, id, intent string, fallback bool) {
	t.Helper()
	require.NoError(t, st.RecordResolution(store.ResolutionRecord{
		ResolutionID: id,
		Intent:       intent,
		InputText:    "lights on",
		Confidence:   0.9,
		FallbackUsed: fallback,
		Embedding:    []float32{0.5, 0.5, 0, 0},
		ResolvedAt:   time.Now().UTC(),
	}))
}

func TestSubmit_ConfirmationReinforces(t *testing.T) {
	l, st := testLedger(t)
	recordResolution(t, st, "res-1", "turn_on_light", false)

	record, err := l.Submit("res-1", "", true)
	require.NoError(t, err)
	assert.True(t, record.WasSuccessful)
	assert.True(t, record.CorrectedIntent.IsZero())

	// Confirmation turns the resolution into a golden record.
	count, err := st.GoldenCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// And no review entry appears.
	pending, err := l.PendingReviews()
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := l.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFeedbacks)
	assert.Equal(t, int64(1), stats.CorrectFeedbacks)
}

func TestSubmit_CorrectionQueuesReview(t *testing.T) {
	l, st := testLedger(t)
	recordResolution(t, st, "res-1", "turn_on_light", false)

	record, err := l.Submit("res-1", "turn_off_light", false)
	require.NoError(t, err)
	assert.False(t, record.WasSuccessful)
	assert.Equal(t, "turn_off_light", record.CorrectedIntent.String())

	// Corrections never become golden records directly.
	count, err := st.GoldenCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	pending, err := l.PendingReviews()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "res-1", pending[0].ResolutionID)
	assert.Equal(t, "turn_on_light", pending[0].ResolvedIntent)
	assert.Equal(t, "turn_off_light", pending[0].SuggestedIntent)

	stats, err := l.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.IncorrectFeedbacks)
}

func TestSubmit_Validation(t *testing.T) {
	l, st := testLedger(t)
	recordResolution(t, st, "res-1", "turn_on_light", false)

	t.Run("empty resolution id", func(t *testing.T) {
		_, err := l.Submit("", "", true)
		var inputErr *types.InputError
		assert.ErrorAs(t, err, &inputErr)
	})

	t.Run("unknown corrected intent", func(t *testing.T) {
		_, err := l.Submit("res-1", "no_such_intent", false)
		var inputErr *types.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "corrected_intent", inputErr.Field)
	})

	t.Run("fallback sentinel is not a valid correction", func(t *testing.T) {
		_, err := l.Submit("res-1", "fallback_intent", false)
		assert.Error(t, err)
	})

	t.Run("unknown resolution", func(t *testing.T) {
		_, err := l.Submit("ghost", "", true)
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}

func TestSubmit_DuplicateConflicts(t *testing.T) {
	l, st := testLedger(t)
	recordResolution(t, st, "res-1", "turn_on_light", false)

	_, err := l.Submit("res-1", "", true)
	require.NoError(t, err)

	_, err = l.Submit("res-1", "", false)
	assert.True(t, errors.Is(err, types.ErrConflict))

	// The conflict leaves the counters where they were.
	stats, err := l.Statistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFeedbacks)
}

func TestSubmit_FallbackResolutionNotReinforced(t *testing.T) {
	l, st := testLedger(t)
	require.NoError(t, st.RecordResolution(store.ResolutionRecord{
		ResolutionID: "res-fb",
		Intent:       catalog.Fallback().String(),
		InputText:    "mumble",
		FallbackUsed: true,
		ResolvedAt:   time.Now().UTC(),
	}))

	_, err := l.Submit("res-fb", "", true)
	require.NoError(t, err)

	// A confirmed fallback carries no intent worth learning.
	count, err := st.GoldenCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSubmit_ExpiredResolution(t *testing.T) {
	l, st := testLedger(t)
	require.NoError(t, st.RecordResolution(store.ResolutionRecord{
		ResolutionID: "res-old",
		Intent:       "turn_on_light",
		ResolvedAt:   time.Now().UTC().Add(-48 * time.Hour),
	}))

	_, err := l.Submit("res-old", "", true)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestMarkReviewed(t *testing.T) {
	l, st := testLedger(t)
	recordResolution(t, st, "res-1", "turn_on_light", false)

	_, err := l.Submit("res-1", "turn_off_light", false)
	require.NoError(t, err)

	pending, err := l.PendingReviews()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, l.MarkReviewed(pending[0].ID))

	pending, err = l.PendingReviews()
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, errors.Is(l.MarkReviewed("review_999999"), types.ErrNotFound))
}

func TestRetention(t *testing.T) {
	l, _ := testLedger(t)
	assert.Equal(t, 24*time.Hour, l.Retention())
}

func TestNew_PrunesExpiredResolutions(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat, err := catalog.New([]catalog.Intent{{ID: catalog.NewID("turn_on_light")}})
	require.NoError(t, err)

	require.NoError(t, st.RecordResolution(store.ResolutionRecord{
		ResolutionID: "res-old",
		Intent:       "turn_on_light",
		InputText:    "lights on",
		ResolvedAt:   time.Now().UTC().Add(-48 * time.Hour),
	}))
	recordResolution(t, st, "res-fresh", "turn_on_light", false)

	New(st, cat, 24*time.Hour)

	// The expired unpinned resolution is gone from the store entirely,
	// not just hidden by the retention cutoff.
	_, found, err := st.LookupResolution("res-old", 30*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = st.LookupResolution("res-fresh", 30*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, found)
}
