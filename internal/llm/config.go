// internal/llm/config.go
package llm

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	PlannerModel string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	MaxRetries   int
}

func LoadConfig() *Config {
	return &Config{
		Model:       "gpt-4o",
		Temperature: 0.1,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
	}
}

// FromAppConfig maps the application config section onto the client config.
func FromAppConfig(cfg appconfig.LLMConfig) *Config {
	return &Config{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		PlannerModel: cfg.PlannerModel,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      appconfig.GetDuration(cfg.Timeout),
		MaxRetries:   cfg.MaxRetries,
	}
}
