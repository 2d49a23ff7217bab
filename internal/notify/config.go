// internal/notify/config.go
package notify

import (
	appconfig "ethics-advisor/internal/common/config"
)

// Config controls the escalation channels. Notifications are off by
// default so local runs never touch AWS.
type Config struct {
	Enabled         bool
	Region          string
	FromEmail       string
	EscalationEmail string
	TopicARN        string
}

func LoadConfig() *Config {
	return &Config{
		Enabled: false,
		Region:  "us-east-1",
	}
}

func FromAppConfig(cfg appconfig.NotificationConfig) *Config {
	return &Config{
		Enabled:         cfg.Enabled,
		Region:          cfg.Region,
		FromEmail:       cfg.FromEmail,
		EscalationEmail: cfg.EscalationEmail,
		TopicARN:        cfg.TopicARN,
	}
}
