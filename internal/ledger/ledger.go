// Package ledger implements the feedback loop: corrections submitted
// against issued resolutions are appended to the store, statistics are
// updated atomically, and each correction routes to reinforcement (a
// golden record) or to the review queue for human inspection. The
// ledger never adjusts matrix weights on its own; negative feedback
// only ever queues for review.
package ledger

import (
	"fmt"
	"time"

	"intentd/internal/catalog"
	"intentd/internal/logging"
	"intentd/internal/store"
	"intentd/internal/types"
)

// DefaultRetention bounds how long a resolution accepts feedback.
const DefaultRetention = 24 * time.Hour

// Ledger owns the feedback state. All writes serialize through the
// store; reads of statistics are diagnostic snapshots.
type Ledger struct {
	st        *store.Store
	cat       *catalog.Catalog
	retention time.Duration
}

// New creates a ledger over an open store. retention <= 0 selects the
// default window. Unpinned resolutions past the retention window are
// pruned on the spot; a prune failure is logged, not fatal.
func New(st *store.Store, cat *catalog.Catalog, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if pruned, err := st.PruneResolutions(retention); err != nil {
		logging.Get(logging.CategoryLedger).Warn("Resolution prune failed: %v", err)
	} else if pruned > 0 {
		logging.Ledger("Pruned %d expired resolutions", pruned)
	}
	return &Ledger{st: st, cat: cat, retention: retention}
}

// Submit records feedback for a prior resolution.
//
// correctedIntent may be empty when the caller confirms without naming
// an alternative. Unknown resolution ids (or ids past the retention
// window) fail with types.ErrNotFound; a second submission for the same
// id fails with types.ErrConflict and leaves statistics untouched.
func (l *Ledger) Submit(resolutionID, correctedIntent string, wasSuccessful bool) (types.FeedbackRecord, error) {
	timer := logging.StartTimer(logging.CategoryLedger, "Ledger.Submit")
	defer timer.Stop()

	if resolutionID == "" {
		return types.FeedbackRecord{}, &types.InputError{Field: "resolution_id", Reason: "must not be empty"}
	}

	var correctedID catalog.ID
	if correctedIntent != "" {
		id, err := l.cat.Parse(correctedIntent)
		if err != nil {
			return types.FeedbackRecord{}, &types.InputError{Field: "corrected_intent", Reason: err.Error()}
		}
		correctedID = id
	}

	resolution, found, err := l.st.LookupResolution(resolutionID, l.retention)
	if err != nil {
		return types.FeedbackRecord{}, fmt.Errorf("ledger lookup failed: %w", err)
	}
	if !found {
		logging.LedgerDebug("Feedback for unknown/expired resolution: %s", resolutionID)
		return types.FeedbackRecord{}, fmt.Errorf("resolution %s: %w", resolutionID, types.ErrNotFound)
	}

	now := time.Now().UTC()
	err = l.st.SubmitFeedback(store.FeedbackRow{
		ResolutionID:    resolutionID,
		CorrectedIntent: correctedIntent,
		WasSuccessful:   wasSuccessful,
		SubmittedAt:     now,
	}, l.retention)
	if err != nil {
		return types.FeedbackRecord{}, err
	}

	if wasSuccessful {
		l.reinforce(resolution)
	} else {
		l.queueForReview(resolution, correctedIntent)
	}

	logging.Ledger("Feedback accepted: resolution=%s successful=%v", resolutionID, wasSuccessful)
	return types.FeedbackRecord{
		ResolutionID:    resolutionID,
		CorrectedIntent: correctedID,
		WasSuccessful:   wasSuccessful,
		SubmittedAt:     now,
	}, nil
}

// reinforce turns a confirmed resolution into a golden record so the
// index shortcut favors this utterance next time. Fallback resolutions
// carry no intent worth reinforcing.
func (l *Ledger) reinforce(r store.ResolutionRecord) {
	if r.FallbackUsed {
		logging.LedgerDebug("Skipping reinforcement for fallback resolution %s", r.ResolutionID)
		return
	}
	if len(r.Embedding) == 0 {
		logging.LedgerDebug("No stored embedding for resolution %s, skipping reinforcement", r.ResolutionID)
		return
	}
	if err := l.st.AddGoldenRecord(r.Intent, r.InputText, r.Embedding); err != nil {
		// Reinforcement is best-effort; the feedback row already stands.
		logging.Get(logging.CategoryLedger).Error("Failed to add golden record for %s: %v", r.ResolutionID, err)
		return
	}
	logging.Ledger("Reinforced: intent=%s utterance=%q", r.Intent, r.InputText)
}

// queueForReview parks a rejected resolution for human inspection.
// The correction is deliberately not applied to scoring weights here.
func (l *Ledger) queueForReview(r store.ResolutionRecord, suggested string) {
	reviewID, err := l.st.EnqueueReview(store.ReviewEntry{
		ResolutionID:    r.ResolutionID,
		OriginalText:    r.InputText,
		ResolvedIntent:  r.Intent,
		SuggestedIntent: suggested,
	})
	if err != nil {
		logging.Get(logging.CategoryLedger).Error("Failed to enqueue review for %s: %v", r.ResolutionID, err)
		return
	}
	logging.Ledger("Queued for review: %s (resolution=%s, suggested=%q)", reviewID, r.ResolutionID, suggested)
}

// Statistics returns a read-only snapshot of the learning statistics.
func (l *Ledger) Statistics() (types.LearningStatistics, error) {
	return l.st.GetStatistics()
}

// PendingReviews lists queue entries awaiting inspection.
func (l *Ledger) PendingReviews() ([]store.ReviewEntry, error) {
	return l.st.PendingReviews()
}

// MarkReviewed resolves a review queue entry.
func (l *Ledger) MarkReviewed(reviewID string) error {
	return l.st.MarkReviewed(reviewID)
}

// Retention exposes the feedback window, mainly for CLI reporting.
func (l *Ledger) Retention() time.Duration {
	return l.retention
}
