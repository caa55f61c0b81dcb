// internal/workers/visa/import-applications/config.go
package importapplications

import (
	"time"

	"visa-portal/internal/common/config"
)

type Config struct {
	InboxDir        string
	RemoveProcessed bool
	MaxFileBytes    int64
	Timeout         time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		InboxDir:        cfg.Import.InboxDir,
		RemoveProcessed: cfg.Import.RemoveProcessed,
		MaxFileBytes:    int64(cfg.Server.MaxUploadMB) << 20,
		Timeout:         5 * time.Minute,
	}
	if w, ok := cfg.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
