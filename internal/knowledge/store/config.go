// internal/knowledge/store/config.go
package store

import "time"

type Config struct {
	Dimensions int
	Timeout    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Dimensions: 1536,
		Timeout:    10 * time.Second,
	}
}
