// internal/workers/visa/notify-status/config.go
package notifystatus

import (
	"time"

	"visa-portal/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
		SMSEnabled:   cfg.Integrations.AWS.SNS.Enabled,
		Timeout:      30 * time.Second,
	}
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
