// internal/retrieval/config.go
package retrieval

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
)

type Config struct {
	Lambda     float64
	BlendRatio float64
}

func LoadConfig() *Config {
	return &Config{
		Lambda:     0.7,
		BlendRatio: 0.6,
	}
}

// FromAppConfig maps the application config section onto the engine config.
func FromAppConfig(cfg appconfig.RetrievalConfig) *Config {
	return &Config{
		Lambda:     cfg.Lambda,
		BlendRatio: cfg.BlendRatio,
	}
}

// RerankerConfig holds settings for the cross-encoder rerank API.
type RerankerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RerankerFromAppConfig maps the application config section onto the reranker config.
func RerankerFromAppConfig(cfg appconfig.RerankConfig) *RerankerConfig {
	return &RerankerConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: appconfig.GetDuration(cfg.Timeout),
	}
}
