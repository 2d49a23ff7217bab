// internal/workflow/config.go
package workflow

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
	"ethics-advisor/internal/retrieval"
)

type Config struct {
	RetrievalStrategy retrieval.Strategy
	Collection        string
	TopK              int
	// BranchTimeout bounds each retrieval/search branch so one stalled
	// call cannot block the fork-join barrier indefinitely.
	BranchTimeout time.Duration
	// NodeTimeout bounds the generation calls.
	NodeTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		RetrievalStrategy: retrieval.StrategySimilarity,
		Collection:        "federal_ethics_docs",
		TopK:              5,
		BranchTimeout:     15 * time.Second,
		NodeTimeout:       60 * time.Second,
	}
}

// FromAppConfig maps the application config onto the orchestrator config.
// The active collection follows the configured default chunking strategy.
func FromAppConfig(cfg *appconfig.Config) *Config {
	return &Config{
		RetrievalStrategy: retrieval.Strategy(cfg.Retrieval.DefaultStrategy),
		Collection:        cfg.Retrieval.ActiveCollection(cfg.Ingestion.DefaultStrategy),
		TopK:              cfg.Retrieval.TopK,
		BranchTimeout:     appconfig.GetDuration(cfg.Workflow.BranchTimeout),
		NodeTimeout:       appconfig.GetDuration(cfg.Workflow.NodeTimeout),
	}
}
