package letter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
)

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Optimizer re-encodes a finished letter with the first available external
// tool. It never fails: when no tool works the file is left as it was.
type Optimizer struct {
	candidates []string
	timeout    time.Duration
	lookPath   func(string) (string, error)
	run        Runner
	logger     logger.Logger
}

func NewOptimizer(cfg OptimizerConfig, log logger.Logger) *Optimizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Optimizer{
		candidates: cfg.Candidates,
		timeout:    timeout,
		lookPath:   exec.LookPath,
		run:        execRunner,
		logger:     log.WithFields(map[string]interface{}{"component": "pdf-optimizer"}),
	}
}

// Optimize returns the tool that replaced the file, or "" when none did.
func (o *Optimizer) Optimize(ctx context.Context, path string) string {
	for _, candidate := range o.candidates {
		bin, err := o.lookPath(candidate)
		if err != nil {
			metrics.OptimizerAttempts.WithLabelValues(candidate, "missing").Inc()
			continue
		}

		out := path + ".optimized.pdf"
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		err = o.run(attemptCtx, bin, optimizerArgs(candidate, path, out)...)
		cancel()
		if err == nil {
			err = replaceWith(out, path)
		}
		if err != nil {
			_ = os.Remove(out)
			metrics.OptimizerAttempts.WithLabelValues(candidate, "failed").Inc()
			o.logger.Warn("pdf optimizer failed", map[string]interface{}{
				"tool":  candidate,
				"error": err.Error(),
			})
			continue
		}

		metrics.OptimizerAttempts.WithLabelValues(candidate, "ok").Inc()
		return candidate
	}
	return ""
}

func optimizerArgs(tool, in, out string) []string {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(tool), filepath.Ext(tool)))
	if strings.HasPrefix(name, "qpdf") {
		return []string{"--object-streams=disable", "--compress-streams=y", in, out}
	}
	// Ghostscript and its Windows builds.
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dBATCH",
		"-dQUIET",
		"-sOutputFile=" + out,
		in,
	}
}

func replaceWith(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("optimizer produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("optimizer produced an empty file")
	}
	return os.Rename(src, dst)
}
