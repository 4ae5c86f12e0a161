// Package index implements Stage 1 of the resolution pipeline: cosine
// nearest-neighbor retrieval over precomputed intent vectors, enriched
// by a golden-record shortcut for utterances the feedback loop has
// already confirmed. The two sources are searched in parallel and
// merged deterministically.
package index

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"intentd/internal/catalog"
	"intentd/internal/embedding"
	"intentd/internal/logging"
	"intentd/internal/store"
	"intentd/internal/types"
)

// DefaultTopK bounds Stage-1 candidate lists when the caller passes no k.
const DefaultTopK = 5

// memoryTopK and memoryBoostWeight govern the golden-record shortcut:
// the top golden matches add similarity*weight to their intent's
// candidate, clamped to [0,1].
const (
	memoryTopK        = 3
	memoryBoostWeight = 0.2
)

// GoldenSearcher is the slice of the ledger store the index needs.
type GoldenSearcher interface {
	SearchGolden(queryEmbedding []float32, topK int) ([]store.GoldenMatch, error)
}

// Index is the read-only semantic index. Built once at startup; safe
// for concurrent retrieval with no coordination.
type Index struct {
	cat     *catalog.Catalog
	engine  embedding.Engine
	vectors [][]float32 // one vector per embedded example text
	owners  []int       // catalog position owning each vector
	golden  GoldenSearcher
}

// Build embeds every intent's meaning text and examples and returns the
// ready index. golden may be nil when no ledger store is attached.
func Build(ctx context.Context, cat *catalog.Catalog, engine embedding.Engine, golden GoldenSearcher) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "index.Build")
	defer timer.StopWithInfo()

	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if engine == nil {
		return nil, fmt.Errorf("embedding engine required")
	}

	idx := &Index{cat: cat, engine: engine, golden: golden}

	var texts []string
	for pos, in := range cat.All() {
		for _, t := range in.EmbedTexts() {
			texts = append(texts, t)
			idx.owners = append(idx.owners, pos)
		}
	}

	if len(texts) == 0 {
		logging.Get(logging.CategoryIndex).Warn("Building index over empty catalog")
		return idx, nil
	}

	vectors, err := engine.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed catalog: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}
	idx.vectors = vectors

	logging.Index("Semantic index built: %d intents, %d vectors (engine=%s)",
		cat.Len(), len(vectors), engine.Name())
	return idx, nil
}

// RetrieveVector is the pure Stage-1 contract: candidates ordered
// descending by similarity, at most k, ties broken by catalog insertion
// order. An intent with several example vectors scores its maximum.
func (idx *Index) RetrieveVector(query []float32, k int) []types.SemanticCandidate {
	if k <= 0 {
		k = DefaultTopK
	}
	if idx.cat.Len() == 0 || len(idx.vectors) == 0 {
		return nil
	}

	best := make(map[int]float64, idx.cat.Len())
	for i, vec := range idx.vectors {
		sim, err := embedding.CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		owner := idx.owners[i]
		if cur, ok := best[owner]; !ok || sim > cur {
			best[owner] = sim
		}
	}

	candidates := make([]types.SemanticCandidate, 0, len(best))
	for pos, in := range idx.cat.All() {
		sim, ok := best[pos]
		if !ok {
			continue
		}
		candidates = append(candidates, types.SemanticCandidate{
			Intent:     in.ID,
			Similarity: sim,
			Provenance: types.ProvenanceVector,
		})
	}

	// Stable sort over catalog order gives the declared tie-breaking.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Retrieve embeds the query text and searches the catalog vectors and
// the golden records in parallel, merging golden hits as boosts. An
// embedding failure yields zero candidates, never an error: the
// orchestrator degrades to the fallback path.
func (idx *Index) Retrieve(ctx context.Context, text string, k int) ([]types.SemanticCandidate, []float32) {
	timer := logging.StartTimer(logging.CategoryIndex, "Index.Retrieve")
	defer timer.Stop()

	query, err := idx.engine.Embed(ctx, text)
	if err != nil || len(query) == 0 {
		logging.Get(logging.CategoryIndex).Warn("Embedding failed, Stage 1 degrades to zero candidates: %v", err)
		return nil, nil
	}

	var (
		candidates []types.SemanticCandidate
		golden     []store.GoldenMatch
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		candidates = idx.RetrieveVector(query, k)
		return nil
	})
	if idx.golden != nil {
		g.Go(func() error {
			matches, err := idx.golden.SearchGolden(query, memoryTopK)
			if err != nil {
				// Golden search is an optimization, not a dependency.
				logging.Get(logging.CategoryIndex).Warn("Golden record search failed: %v", err)
				return nil
			}
			golden = matches
			return nil
		})
	}
	_ = g.Wait()

	merged := idx.mergeGolden(candidates, golden, k)
	logging.IndexDebug("Stage 1 retrieved %d candidates (golden hits=%d)", len(merged), len(golden))
	return merged, query
}

// mergeGolden folds golden-record hits into the candidate list. A hit
// on an already-proposed intent boosts its similarity in proportion to
// the record's reinforcement weight; a hit on an unseen intent enters
// as a memory-provenance candidate. The result is re-sorted and
// re-capped.
func (idx *Index) mergeGolden(candidates []types.SemanticCandidate, golden []store.GoldenMatch, k int) []types.SemanticCandidate {
	if len(golden) == 0 {
		return candidates
	}
	if k <= 0 {
		k = DefaultTopK
	}

	byName := make(map[string]int, len(candidates))
	for i, c := range candidates {
		byName[c.Intent.String()] = i
	}

	for _, gm := range golden {
		// Reinforced records (weight up to 2.0) pull harder than a
		// record confirmed once.
		boost := gm.Similarity * memoryBoostWeight * gm.Weight
		if i, ok := byName[gm.Intent]; ok {
			boosted := candidates[i].Similarity + boost
			if boosted > 1.0 {
				boosted = 1.0
			}
			candidates[i].Similarity = boosted
			candidates[i].Provenance = types.ProvenanceMemory
			continue
		}
		id, err := idx.cat.Parse(gm.Intent)
		if err != nil {
			// Golden record for an intent no longer in the catalog.
			logging.Get(logging.CategoryIndex).Warn("Golden record references unknown intent %q", gm.Intent)
			continue
		}
		candidates = append(candidates, types.SemanticCandidate{
			Intent:     id,
			Similarity: gm.Similarity,
			Provenance: types.ProvenanceMemory,
		})
		byName[gm.Intent] = len(candidates) - 1
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return idx.cat.Order(candidates[i].Intent) < idx.cat.Order(candidates[j].Intent)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	return len(idx.vectors)
}

// Engine exposes the embedding engine, shared with the ledger so golden
// records embed with the same model the index searches with.
func (idx *Index) Engine() embedding.Engine {
	return idx.engine
}
