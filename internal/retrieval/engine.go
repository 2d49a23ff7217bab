// internal/retrieval/engine.go
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/metrics"
	"ethics-advisor/internal/models"
)

const (
	// DefaultTopK is used when a caller passes a non-positive K.
	DefaultTopK = 5

	// rerank over-fetches this many times K before reordering.
	rerankFetchMultiplier = 4

	// diversity considers at most min(3*K, maxDiversityFetch) candidates.
	diversityFetchMultiplier = 3
	maxDiversityFetch        = 20

	// fingerprintPrefixLen bounds how much passage text feeds the
	// dedupe fingerprint.
	fingerprintPrefixLen = 100
)

var ErrInvalidStrategy = errors.New("INVALID_RETRIEVAL_STRATEGY")

// QueryEmbedder turns the consultation question into a query vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher returns the k nearest passages from a collection.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]models.Passage, error)
}

// Engine runs one of four retrieval strategies against the knowledge
// store. Downstream failures degrade to an empty result instead of an
// error; only an unknown strategy is fatal.
type Engine struct {
	config   *Config
	embedder QueryEmbedder
	store    VectorSearcher
	reranker Reranker
	log      logger.Logger
}

// NewEngine builds the engine. reranker may be nil, in which case the
// rerank strategy always falls back to similarity ordering.
func NewEngine(cfg *Config, embedder QueryEmbedder, store VectorSearcher, reranker Reranker, log logger.Logger) *Engine {
	return &Engine{
		config:   cfg,
		embedder: embedder,
		store:    store,
		reranker: reranker,
		log:      log.With(map[string]interface{}{"component": "retrieval"}),
	}
}

// Retrieve fetches up to topK passages from collection using the given
// strategy. The result carries an outcome tag so callers can tell a
// clean rerank from a silent fallback.
func (e *Engine) Retrieve(ctx context.Context, query string, strategy Strategy, collection string, topK int, opts Options) (*Result, error) {
	if !ValidStrategy(strategy) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	start := time.Now()

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return e.degrade(strategy, "embed_query", err), nil
	}

	var result *Result
	switch strategy {
	case StrategySimilarity:
		result = e.similarity(ctx, collection, vector, topK)
	case StrategyRerank:
		result = e.rerank(ctx, query, collection, vector, topK, opts)
	case StrategyDiversity:
		result = e.diversity(ctx, collection, vector, topK, opts)
	case StrategyHybrid:
		result = e.hybrid(ctx, collection, vector, topK, opts)
	}

	e.log.Info("Retrieval completed", map[string]interface{}{
		"strategy":   string(strategy),
		"outcome":    string(result.Outcome),
		"count":      len(result.Passages),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (e *Engine) similarity(ctx context.Context, collection string, vector []float32, topK int) *Result {
	passages, err := e.store.Search(ctx, collection, vector, topK)
	if err != nil {
		return e.degrade(StrategySimilarity, "vector_search", err)
	}
	return &Result{Passages: passages, Outcome: OutcomeSimilarity}
}

func (e *Engine) rerank(ctx context.Context, query, collection string, vector []float32, topK int, opts Options) *Result {
	fetchK := opts.FetchK
	if fetchK <= 0 {
		fetchK = rerankFetchMultiplier * topK
	}

	candidates, err := e.store.Search(ctx, collection, vector, fetchK)
	if err != nil {
		return e.degrade(StrategyRerank, "vector_search", err)
	}
	if len(candidates) == 0 {
		return &Result{Passages: candidates, Outcome: OutcomeReranked}
	}

	if e.reranker == nil || !e.reranker.Available() {
		e.log.Warn("Reranker unavailable, falling back to similarity order", map[string]interface{}{
			"candidates": len(candidates),
		})
		metrics.RetrievalFallbacks.WithLabelValues(string(StrategyRerank)).Inc()
		return &Result{Passages: truncate(candidates, topK), Outcome: OutcomeRerankFallback}
	}

	reranked, err := e.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		e.log.Warn("Rerank failed, falling back to similarity order", map[string]interface{}{
			"error":      err.Error(),
			"candidates": len(candidates),
		})
		metrics.RetrievalFallbacks.WithLabelValues(string(StrategyRerank)).Inc()
		return &Result{Passages: truncate(candidates, topK), Outcome: OutcomeRerankFallback}
	}
	return &Result{Passages: reranked, Outcome: OutcomeReranked}
}

func (e *Engine) diversity(ctx context.Context, collection string, vector []float32, topK int, opts Options) *Result {
	fetchK := diversityFetchMultiplier * topK
	if fetchK > maxDiversityFetch {
		fetchK = maxDiversityFetch
	}
	if fetchK < topK {
		fetchK = topK
	}

	candidates, err := e.store.Search(ctx, collection, vector, fetchK)
	if err != nil {
		return e.degrade(StrategyDiversity, "vector_search", err)
	}

	selected := mmrSelect(vector, candidates, topK, e.resolveLambda(opts))
	return &Result{Passages: selected, Outcome: OutcomeDiversity}
}

// hybrid runs the similarity and diversity legs independently, keeps the
// top ceil(K*blendRatio) similarity passages, and fills the remaining
// slots from the diversity leg, skipping near-duplicate content.
func (e *Engine) hybrid(ctx context.Context, collection string, vector []float32, topK int, opts Options) *Result {
	blendRatio := e.resolveBlendRatio(opts)
	simCount := int(math.Ceil(float64(topK) * blendRatio))
	if simCount > topK {
		simCount = topK
	}

	simPassages, err := e.store.Search(ctx, collection, vector, topK)
	if err != nil {
		e.log.Warn("Hybrid similarity leg failed", map[string]interface{}{"error": err.Error()})
		simPassages = nil
	}

	fetchK := diversityFetchMultiplier * topK
	if fetchK > maxDiversityFetch {
		fetchK = maxDiversityFetch
	}
	var divPassages []models.Passage
	candidates, err := e.store.Search(ctx, collection, vector, fetchK)
	if err != nil {
		e.log.Warn("Hybrid diversity leg failed", map[string]interface{}{"error": err.Error()})
	} else {
		divPassages = mmrSelect(vector, candidates, topK, e.resolveLambda(opts))
	}

	if len(simPassages) == 0 && len(divPassages) == 0 {
		return e.degrade(StrategyHybrid, "both_legs", errors.New("no passages from either leg"))
	}

	if simCount > len(simPassages) {
		simCount = len(simPassages)
	}
	blended := make([]models.Passage, 0, topK)
	seen := make(map[uint64]bool)
	for _, p := range simPassages[:simCount] {
		blended = append(blended, p)
		seen[contentFingerprint(p.Text)] = true
	}
	for _, p := range divPassages {
		if len(blended) >= topK {
			break
		}
		fp := contentFingerprint(p.Text)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		blended = append(blended, p)
	}
	return &Result{Passages: blended, Outcome: OutcomeHybrid}
}

func (e *Engine) resolveLambda(opts Options) float64 {
	lambda := e.config.Lambda
	if opts.Lambda != nil {
		lambda = *opts.Lambda
	}
	return math.Max(0.0, math.Min(lambda, 1.0))
}

func (e *Engine) resolveBlendRatio(opts Options) float64 {
	ratio := e.config.BlendRatio
	if opts.BlendRatio > 0 {
		ratio = opts.BlendRatio
	}
	if ratio <= 0 || ratio > 1 {
		return 0.6
	}
	return ratio
}

func (e *Engine) degrade(strategy Strategy, stage string, err error) *Result {
	e.log.Warn("Retrieval degraded to empty result", map[string]interface{}{
		"strategy": string(strategy),
		"stage":    stage,
		"error":    err.Error(),
	})
	metrics.RetrievalFallbacks.WithLabelValues(string(strategy)).Inc()
	return &Result{Passages: []models.Passage{}, Outcome: OutcomeDegraded}
}

// mmrSelect greedily picks up to k passages maximizing
// lambda*relevance - (1-lambda)*redundancy, where redundancy is the
// highest similarity to an already selected passage.
func mmrSelect(queryVec []float32, candidates []models.Passage, k int, lambda float64) []models.Passage {
	if k > len(candidates) {
		k = len(candidates)
	}
	selected := make([]models.Passage, 0, k)
	selectedIdx := make([]int, 0, k)
	used := make(map[int]bool)

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			relevance := candidateRelevance(queryVec, c)
			redundancy := 0.0
			if len(selectedIdx) > 0 {
				redundancy = math.Inf(-1)
				for _, j := range selectedIdx {
					if s := cosineSimilarity(candidates[j].Vector, c.Vector); s > redundancy {
						redundancy = s
					}
				}
			}
			score := lambda*relevance - (1.0-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selectedIdx = append(selectedIdx, bestIdx)
		selected = append(selected, candidates[bestIdx])
	}
	return selected
}

func candidateRelevance(queryVec []float32, p models.Passage) float64 {
	if len(p.Vector) > 0 && len(queryVec) > 0 {
		return cosineSimilarity(queryVec, p.Vector)
	}
	if p.Score != nil {
		return *p.Score
	}
	return 0.0
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// contentFingerprint hashes the leading passage text so the hybrid
// blend can drop passages that duplicate content across legs.
func contentFingerprint(text string) uint64 {
	if len(text) > fingerprintPrefixLen {
		text = text[:fingerprintPrefixLen]
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

func truncate(passages []models.Passage, k int) []models.Passage {
	if len(passages) > k {
		return passages[:k]
	}
	return passages
}
