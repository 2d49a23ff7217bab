// internal/ingestion/config.go
package ingestion

import (
	appconfig "ethics-advisor/internal/common/config"
)

// Config controls document chunking and the collection each strategy
// writes into.
type Config struct {
	ChunkSize          int
	ChunkOverlap       int
	DefaultStrategy    Strategy
	Collection         string
	SemanticCollection string
}

func LoadConfig() *Config {
	return &Config{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		DefaultStrategy:    StrategyCharacter,
		Collection:         "federal_ethics_docs",
		SemanticCollection: "federal_ethics_semantic",
	}
}

func FromAppConfig(cfg *appconfig.Config) *Config {
	return &Config{
		ChunkSize:          cfg.Ingestion.ChunkSize,
		ChunkOverlap:       cfg.Ingestion.ChunkOverlap,
		DefaultStrategy:    Strategy(cfg.Ingestion.DefaultStrategy),
		Collection:         cfg.Retrieval.Collection,
		SemanticCollection: cfg.Retrieval.SemanticCollection,
	}
}

// CollectionFor maps a chunking strategy to its target collection.
func (c *Config) CollectionFor(strategy Strategy) string {
	if strategy == StrategySemantic {
		return c.SemanticCollection
	}
	return c.Collection
}
