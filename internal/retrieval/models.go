// internal/retrieval/models.go
package retrieval

import "ethics-advisor/internal/models"

// Strategy selects how passages are pulled out of the vector store.
type Strategy string

const (
	// StrategySimilarity is plain cosine nearest-neighbour search.
	StrategySimilarity Strategy = "similarity"
	// StrategyRerank over-fetches and reorders candidates with a cross-encoder.
	StrategyRerank Strategy = "rerank"
	// StrategyDiversity applies maximal marginal relevance to trade
	// relevance against redundancy.
	StrategyDiversity Strategy = "diversity"
	// StrategyHybrid blends similarity and diversity result sets.
	StrategyHybrid Strategy = "hybrid"
)

// ValidStrategy reports whether s names a known retrieval strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategySimilarity, StrategyRerank, StrategyDiversity, StrategyHybrid:
		return true
	}
	return false
}

// Outcome records which path actually produced the result, so callers can
// tell a clean rerank from a silent fallback.
type Outcome string

const (
	OutcomeSimilarity     Outcome = "similarity"
	OutcomeReranked       Outcome = "reranked"
	OutcomeRerankFallback Outcome = "rerank_fallback"
	OutcomeDiversity      Outcome = "diversity"
	OutcomeHybrid         Outcome = "hybrid"
	// OutcomeDegraded means a downstream dependency failed and the engine
	// returned no passages rather than an error.
	OutcomeDegraded Outcome = "degraded"
)

// Options tunes a single Retrieve call. Zero values fall back to the
// engine defaults; Lambda is a pointer so an explicit 0 (pure diversity)
// stays distinguishable from unset.
type Options struct {
	FetchK     int
	Lambda     *float64
	BlendRatio float64
}

// Result is the outcome of one retrieval run.
type Result struct {
	Passages []models.Passage
	Outcome  Outcome
}
