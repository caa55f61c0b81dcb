// internal/workers/visa/generate-letter/config.go
package generateletter

import (
	"time"

	"visa-portal/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	Subject      string
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
		Subject:      "Your visa request letter",
		Timeout:      60 * time.Second,
	}
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
