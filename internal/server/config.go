// internal/server/config.go
package server

import (
	"time"

	appconfig "ethics-advisor/internal/common/config"
)

// Config carries the HTTP listener settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

func FromAppConfig(cfg *appconfig.Config) *Config {
	return &Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     appconfig.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    appconfig.GetDuration(cfg.Server.WriteTimeout),
		ShutdownTimeout: appconfig.GetDuration(cfg.Server.ShutdownTimeout),
	}
}
