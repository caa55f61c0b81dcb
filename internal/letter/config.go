package letter

import (
	"time"

	"visa-portal/internal/common/config"
)

// Config is fixed for the life of a Renderer.
type Config struct {
	TemplatePath     string
	OutputDir        string
	FallbackLocation string
	FontSize         float64
	Optimizer        OptimizerConfig
}

type OptimizerConfig struct {
	Enabled    bool
	Candidates []string
	Timeout    time.Duration
}

func ConfigFrom(c config.LetterConfig) Config {
	return Config{
		TemplatePath:     c.TemplatePath,
		OutputDir:        c.OutputDir,
		FallbackLocation: c.FallbackLocation,
		FontSize:         c.FontSize,
		Optimizer: OptimizerConfig{
			Enabled:    c.Optimizer.Enabled,
			Candidates: append([]string(nil), c.Optimizer.Candidates...),
			Timeout:    config.GetDuration(c.Optimizer.Timeout),
		},
	}
}
