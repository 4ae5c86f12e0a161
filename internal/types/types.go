// Package types provides shared type definitions used across intentd packages.
// This package exists to break import cycles between the matrix, index,
// pipeline and ledger packages. Types here are foundational data
// structures with no complex dependencies.
package types

import (
	"errors"
	"fmt"
	"time"

	"intentd/internal/catalog"
)

// =============================================================================
// CONTEXT SNAPSHOT
// =============================================================================

// SyntaxCue is the utterance-level grammatical signal.
type SyntaxCue string

const (
	CueQuestion    SyntaxCue = "question"
	CueCommand     SyntaxCue = "command"
	CueExclamation SyntaxCue = "exclamation"
	CueNone        SyntaxCue = ""
)

// IntonationTag is the audio prosody signal, when the caller has one.
type IntonationTag string

const (
	ToneRising  IntonationTag = "rising"
	ToneFalling IntonationTag = "falling"
	ToneFlat    IntonationTag = "flat"
	ToneNone    IntonationTag = ""
)

// ContextSnapshot holds the per-request situational signals consumed by
// the context resolution matrix. It is ephemeral: built fresh from
// caller input for each resolution and never persisted as-is.
type ContextSnapshot struct {
	History       []string      // recent commands, most-recent-last
	SystemState   string        // device/system state tag, e.g. "ON"
	ActiveGoal    string        // goal id or "family:<name>"
	CurrentScreen string        // screen/surface tag
	SyntaxCue     SyntaxCue     // question/command/exclamation
	SocialMode    string        // social register, e.g. "casual", "business"
	Location      string        // location tag, empty = unknown
	TimeOfDay     string        // time bucket, see TimeOfDayBucket
	UserProfile   string        // demographic/profile tag
	Intonation    IntonationTag // audio prosody, if available
	Fidelity      float64       // input fidelity in [0,1], 1 = clean input
}

// Validate rejects malformed snapshots before any scoring runs.
func (s ContextSnapshot) Validate() error {
	if s.Fidelity < 0.0 || s.Fidelity > 1.0 {
		return &InputError{Field: "fidelity", Reason: fmt.Sprintf("must be in [0,1], got %.3f", s.Fidelity)}
	}
	return nil
}

// RecentHistory returns the last n history entries, most-recent-last.
func (s ContextSnapshot) RecentHistory(n int) []string {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Time-of-day buckets.
const (
	BucketEarlyMorning = "early_morning"
	BucketMorning      = "morning"
	BucketAfternoon    = "afternoon"
	BucketEvening      = "evening"
	BucketNight        = "night"
	BucketLateNight    = "late_night"
)

// TimeOfDayBucket maps a clock time to its bucket tag.
func TimeOfDayBucket(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 4 && h < 6:
		return BucketEarlyMorning
	case h >= 6 && h < 12:
		return BucketMorning
	case h >= 12 && h < 17:
		return BucketAfternoon
	case h >= 17 && h < 21:
		return BucketEvening
	case h >= 21 && h < 23:
		return BucketNight
	default:
		return BucketLateNight
	}
}

// =============================================================================
// STAGE 1 / STAGE 2 RESULTS
// =============================================================================

// Provenance records how a candidate entered Stage 1.
type Provenance string

const (
	ProvenanceVector Provenance = "vector" // direct vector search
	ProvenanceMemory Provenance = "memory" // golden-record boosted shortcut
)

// SemanticCandidate is an intent proposed by Stage 1 before contextual
// verification. Created per request and discarded with it.
type SemanticCandidate struct {
	Intent     catalog.ID
	Similarity float64 // raw cosine similarity in [0,1]
	Provenance Provenance
}

// FactorContribution is one row of the Stage-2 audit trail.
type FactorContribution struct {
	Factor     string  // factor name, e.g. "place"
	Delta      float64 // signed additive delta, 0 for multipliers
	Multiplier float64 // multiplicative effect, 1 when additive
}

// ExclusionReason codes for hard-excluded candidates.
type ExclusionReason string

const (
	ExcludedLocationStrict ExclusionReason = "location_strict_mismatch"
	ExcludedStateConflict  ExclusionReason = "state_conflict_fatal"
	ExcludedAudience       ExclusionReason = "audience_incompatible"
)

// ExclusionRecord documents a candidate removed by a hard-exclusion
// rule. Exclusions are recorded, never silently dropped.
type ExclusionRecord struct {
	Intent catalog.ID
	Reason ExclusionReason
}

// Fallback reasons carried on a fallback VerifiedIntent.
const (
	FallbackNoCandidates   = "no candidates"
	FallbackAllExcluded    = "all excluded"
	FallbackBelowThreshold = "below confidence threshold"
)

// VerifiedIntent is the unit returned to the caller and referenced
// later by feedback.
type VerifiedIntent struct {
	ResolutionID   string // uuid, key for feedback submission
	Intent         catalog.ID
	Confidence     float64 // final adjusted score, clamped to [0,1]
	Stage1Passed   bool
	Stage2Passed   bool
	FallbackUsed   bool
	FallbackReason string // set only when FallbackUsed
	Candidates     []SemanticCandidate  // all candidates Stage 1 produced
	Factors        []FactorContribution // audit trail for the winner
	Exclusions     []ExclusionRecord    // hard-excluded candidates
	ResolvedAt     time.Time
}

// =============================================================================
// FEEDBACK
// =============================================================================

// FeedbackRecord is one append-only correction entry.
type FeedbackRecord struct {
	ResolutionID    string
	CorrectedIntent catalog.ID // zero when the caller gave no correction
	WasSuccessful   bool
	SubmittedAt     time.Time
}

// LearningStatistics is the aggregate feedback state. The invariant
// Total == Correct + Incorrect holds after every update.
type LearningStatistics struct {
	TotalFeedbacks     int64
	CorrectFeedbacks   int64
	IncorrectFeedbacks int64
	Accuracy           float64 // Correct/Total, 0 when Total == 0
	LastUpdate         time.Time
}

// =============================================================================
// ERRORS
// =============================================================================

// InputError marks a request rejected before Stage 1 runs.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// Ledger misuse conditions, surfaced to the caller rather than
// recovered locally.
var (
	// ErrNotFound marks feedback referencing an unknown or expired resolution.
	ErrNotFound = errors.New("resolution not found")

	// ErrConflict marks a duplicate feedback submission for a resolution.
	ErrConflict = errors.New("feedback already submitted")
)
