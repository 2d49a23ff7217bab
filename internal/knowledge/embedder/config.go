// internal/knowledge/embedder/config.go
package embedder

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	CacheTTL   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// FromAppConfig maps the application config section onto the embedder config.
func FromAppConfig(cfg appconfig.EmbeddingsConfig) *Config {
	return &Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    appconfig.GetDuration(cfg.Timeout),
		CacheTTL:   appconfig.GetTTL(cfg.CacheTTL),
	}
}
