// internal/search/config.go
package search

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
)

type Config struct {
	BaseURL        string
	APIKey         string
	MaxResults     int
	SearchDepth    string
	IncludeDomains []string
	Timeout        time.Duration
	CacheTTL       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:     "https://api.tavily.com/search",
		MaxResults:  3,
		SearchDepth: "advanced",
		IncludeDomains: []string{
			"osg.gov",
			"oge.gov",
			"ethics.gov",
			"gsa.gov",
		},
		Timeout:  10 * time.Second,
		CacheTTL: 15 * time.Minute,
	}
}

// FromAppConfig maps the application config section onto the adapter config.
func FromAppConfig(cfg appconfig.SearchConfig) *Config {
	return &Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		MaxResults:     cfg.MaxResults,
		SearchDepth:    cfg.SearchDepth,
		IncludeDomains: cfg.IncludeDomains,
		Timeout:        appconfig.GetDuration(cfg.Timeout),
		CacheTTL:       appconfig.GetTTL(cfg.CacheTTL),
	}
}
