// Package pipeline drives the two-stage resolution state machine:
// Stage 1 retrieves semantic candidates from the index, Stage 2 scores
// them against the context resolution matrix, and every request ends in
// exactly one VerifiedIntent, accepted or fallback. The machine is
// deterministic: identical (text, context, catalog) inputs produce the
// same decision.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"intentd/internal/catalog"
	"intentd/internal/index"
	"intentd/internal/logging"
	"intentd/internal/matrix"
	"intentd/internal/normalize"
	"intentd/internal/store"
	"intentd/internal/types"
)

// DefaultConfidenceThreshold is the minimum adjusted score an intent
// needs to be accepted without falling back.
const DefaultConfidenceThreshold = 0.6

// Resolver is the hybrid orchestrator. Safe for concurrent use: the
// catalog, index and matrix are read-only; only the ledger store
// serializes writes internally.
type Resolver struct {
	cat       *catalog.Catalog
	idx       *index.Index
	mat       *matrix.Matrix
	norm      normalize.Normalizer
	ledger    *store.Store // optional, records resolutions for feedback
	threshold float64
	topK      int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold overrides the confidence threshold.
func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

// WithTopK overrides the Stage-1 candidate count.
func WithTopK(k int) Option {
	return func(r *Resolver) { r.topK = k }
}

// WithNormalizer overrides the input normalizer.
func WithNormalizer(n normalize.Normalizer) Option {
	return func(r *Resolver) { r.norm = n }
}

// WithLedgerStore attaches the ledger store so issued resolutions can
// receive feedback later.
func WithLedgerStore(s *store.Store) Option {
	return func(r *Resolver) { r.ledger = s }
}

// New builds a resolver over a loaded catalog and built index.
func New(cat *catalog.Catalog, idx *index.Index, mat *matrix.Matrix, opts ...Option) *Resolver {
	r := &Resolver{
		cat:       cat,
		idx:       idx,
		mat:       mat,
		norm:      normalize.NewRuleNormalizer(),
		threshold: DefaultConfidenceThreshold,
		topK:      index.DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// scored pairs a candidate with its Stage-2 result for ranking.
type scored struct {
	candidate types.SemanticCandidate
	result    matrix.Result
}

// Resolve runs the full pipeline for one utterance. It returns an
// error only for malformed input; upstream failures and low confidence
// degrade to a fallback VerifiedIntent instead.
func (r *Resolver) Resolve(ctx context.Context, text string, snap types.ContextSnapshot) (types.VerifiedIntent, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Resolver.Resolve")
	defer timer.Stop()

	resolutionID := uuid.NewString()
	rlog := logging.WithRequestID(logging.CategoryPipeline, resolutionID)

	// Input validation runs before Stage 1. Malformed requests are the
	// only ones that surface an error to the caller.
	if strings.TrimSpace(text) == "" {
		return types.VerifiedIntent{}, &types.InputError{Field: "text", Reason: "must not be empty"}
	}
	if err := snap.Validate(); err != nil {
		return types.VerifiedIntent{}, err
	}

	// Normalization fills the signals the caller left blank. A zero
	// fidelity means "unmeasured" and takes the normalizer's estimate.
	clean, fidelity := r.norm.Normalize(text)
	if snap.Fidelity == 0 {
		snap.Fidelity = fidelity
	}
	if snap.SyntaxCue == types.CueNone {
		snap.SyntaxCue = inferSyntaxCue(text)
	}
	if snap.Intonation == types.ToneNone {
		snap.Intonation = normalize.InferIntonation(text)
	}

	rlog.Info("Resolving %q (clean=%q, fidelity=%.2f)", text, clean, snap.Fidelity)

	// Start: Stage 1 retrieval.
	candidates, queryEmbedding := r.idx.Retrieve(ctx, clean, r.topK)
	if len(candidates) == 0 {
		rlog.Info("Stage 1 produced no candidates, falling back")
		return r.emit(fallbackResult(resolutionID, nil, nil, nil, false, types.FallbackNoCandidates, 0), clean, queryEmbedding)
	}

	// Scoring: Stage 2 runs the matrix per candidate. Hard-excluded
	// candidates leave the ranking but stay in the audit trail.
	var (
		ranked     []scored
		exclusions []types.ExclusionRecord
	)
	for _, cand := range candidates {
		in, ok := r.cat.Get(cand.Intent)
		if !ok {
			continue
		}
		result := r.mat.Score(in, snap, cand.Similarity)
		if result.Excluded {
			exclusions = append(exclusions, types.ExclusionRecord{Intent: cand.Intent, Reason: result.Reason})
			continue
		}
		ranked = append(ranked, scored{candidate: cand, result: result})
	}

	if len(ranked) == 0 {
		rlog.Info("All %d candidates hard-excluded, falling back", len(candidates))
		return r.emit(fallbackResult(resolutionID, candidates, nil, exclusions, true, types.FallbackAllExcluded, 0), clean, queryEmbedding)
	}

	// Ranking: adjusted score, then Stage-1 similarity, then catalog
	// order. The explicit chain keeps the decision deterministic.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].result.Adjusted != ranked[j].result.Adjusted {
			return ranked[i].result.Adjusted > ranked[j].result.Adjusted
		}
		if ranked[i].candidate.Similarity != ranked[j].candidate.Similarity {
			return ranked[i].candidate.Similarity > ranked[j].candidate.Similarity
		}
		return r.cat.Order(ranked[i].candidate.Intent) < r.cat.Order(ranked[j].candidate.Intent)
	})

	top := ranked[0]

	// Decision.
	if top.result.Adjusted >= r.threshold {
		rlog.Info("Accepted %s (confidence=%.3f)", top.candidate.Intent, top.result.Adjusted)
		v := types.VerifiedIntent{
			ResolutionID: resolutionID,
			Intent:       top.candidate.Intent,
			Confidence:   top.result.Adjusted,
			Stage1Passed: true,
			Stage2Passed: true,
			Candidates:   candidates,
			Factors:      top.result.Factors,
			Exclusions:   exclusions,
			ResolvedAt:   time.Now().UTC(),
		}
		return r.emit(v, clean, queryEmbedding)
	}

	rlog.Info("Top candidate %s below threshold (%.3f < %.3f), falling back",
		top.candidate.Intent, top.result.Adjusted, r.threshold)
	v := fallbackResult(resolutionID, candidates, top.result.Factors, exclusions, true, types.FallbackBelowThreshold, top.result.Adjusted)
	return r.emit(v, clean, queryEmbedding)
}

// emit records the resolution in the ledger store (when attached) and
// returns it. Recording failures are logged, never surfaced: resolution
// always answers the caller.
func (r *Resolver) emit(v types.VerifiedIntent, cleanText string, queryEmbedding []float32) (types.VerifiedIntent, error) {
	if r.ledger != nil {
		err := r.ledger.RecordResolution(store.ResolutionRecord{
			ResolutionID: v.ResolutionID,
			Intent:       v.Intent.String(),
			InputText:    cleanText,
			Confidence:   v.Confidence,
			FallbackUsed: v.FallbackUsed,
			Embedding:    queryEmbedding,
			ResolvedAt:   v.ResolvedAt,
		})
		if err != nil {
			logging.Get(logging.CategoryPipeline).Error("Failed to record resolution %s: %v", v.ResolutionID, err)
		}
	}
	return v, nil
}

// fallbackResult builds the reserved fallback VerifiedIntent.
func fallbackResult(resolutionID string, candidates []types.SemanticCandidate, factors []types.FactorContribution,
	exclusions []types.ExclusionRecord, stage1Passed bool, reason string, confidence float64) types.VerifiedIntent {
	return types.VerifiedIntent{
		ResolutionID:   resolutionID,
		Intent:         catalog.Fallback(),
		Confidence:     confidence,
		Stage1Passed:   stage1Passed,
		Stage2Passed:   false,
		FallbackUsed:   true,
		FallbackReason: reason,
		Candidates:     candidates,
		Factors:        factors,
		Exclusions:     exclusions,
		ResolvedAt:     time.Now().UTC(),
	}
}

// inferSyntaxCue reads the utterance-level cue off the raw text when
// the caller supplied none.
func inferSyntaxCue(text string) types.SyntaxCue {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasSuffix(trimmed, "?"):
		return types.CueQuestion
	case strings.HasSuffix(trimmed, "!"):
		return types.CueExclamation
	default:
		return types.CueNone
	}
}
