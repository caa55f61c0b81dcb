// Package letter renders visa request letters from a fillable PDF template.
package letter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
)

var (
	ErrNotApproved      = errors.New("letters are only issued for approved applications")
	ErrGenerationFailed = errors.New("letter generation failed")
)

type SizeAnalysis struct {
	OriginalBytes    int64   `json:"originalBytes"`
	FinalBytes       int64   `json:"finalBytes"`
	Normalized       bool    `json:"normalized"`
	Tool             string  `json:"tool,omitempty"`
	ReductionPercent float64 `json:"reductionPercent"`
}

// Result points at the rendered file. The caller owns the file and must
// remove it once it has been delivered.
type Result struct {
	Path         string       `json:"path"`
	Filename     string       `json:"filename"`
	Size         int64        `json:"size"`
	SizeAnalysis SizeAnalysis `json:"sizeAnalysis"`
}

type Renderer struct {
	cfg       Config
	templates *TemplateCache
	engine    Engine
	optimizer *Optimizer
	logger    logger.Logger
	now       func() time.Time
}

func NewRenderer(cfg Config, templates *TemplateCache, engine Engine, log logger.Logger) *Renderer {
	r := &Renderer{
		cfg:       cfg,
		templates: templates,
		engine:    engine,
		logger:    log.WithFields(map[string]interface{}{"component": "letter-renderer"}),
		now:       time.Now,
	}
	if cfg.Optimizer.Enabled && len(cfg.Optimizer.Candidates) > 0 {
		r.optimizer = NewOptimizer(cfg.Optimizer, log)
	}
	return r
}

func (r *Renderer) Render(ctx context.Context, app *models.Application, meeting *models.Meeting) (*Result, error) {
	if app.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: application %s is %s", ErrNotApproved, app.ID, app.Status)
	}

	start := time.Now()
	res, err := r.render(ctx, app, meeting)
	metrics.LetterRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LetterRenders.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LetterRenders.WithLabelValues("ok").Inc()
	return res, nil
}

func (r *Renderer) render(ctx context.Context, app *models.Application, meeting *models.Meeting) (*Result, error) {
	tpl, err := r.templates.Get(ctx)
	if err != nil {
		return nil, err
	}

	names, err := r.engine.FieldNames(bytes.NewReader(tpl))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	values := r.bind(Source{
		App:              app,
		Meeting:          meeting,
		Now:              r.now(),
		FallbackLocation: r.cfg.FallbackLocation,
	}, names)

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrGenerationFailed, err)
	}
	filename := Filename(app.FirstName, app.LastName)
	path := filepath.Join(r.cfg.OutputDir, uuid.NewString()+"-"+filename)

	report, err := r.write(path, tpl, values)
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTemplateInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if report.StripErr != nil {
		r.logger.Warn("could not strip interactive form", map[string]interface{}{
			"applicationId": app.ID,
			"error":         report.StripErr.Error(),
		})
	}

	original, err := fileSize(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	analysis := SizeAnalysis{OriginalBytes: original, FinalBytes: original}
	if r.optimizer != nil {
		if tool := r.optimizer.Optimize(ctx, path); tool != "" {
			if final, err := fileSize(path); err == nil {
				analysis.FinalBytes = final
				analysis.Normalized = true
				analysis.Tool = tool
			}
		}
	}
	if analysis.OriginalBytes > 0 {
		saved := float64(analysis.OriginalBytes-analysis.FinalBytes) / float64(analysis.OriginalBytes) * 100
		analysis.ReductionPercent = math.Round(saved*10) / 10
	}

	r.logger.Info("letter rendered", map[string]interface{}{
		"applicationId": app.ID,
		"fields":        len(values),
		"flattened":     report.Flattened,
		"bytes":         analysis.FinalBytes,
		"tool":          analysis.Tool,
	})

	return &Result{
		Path:         path,
		Filename:     filename,
		Size:         analysis.FinalBytes,
		SizeAnalysis: analysis,
	}, nil
}

// bind evaluates every binding whose field exists in the template. Missing
// fields and failing extractors are logged and skipped.
func (r *Renderer) bind(src Source, templateFields []string) []FieldValue {
	present := make(map[string]bool, len(templateFields))
	for _, name := range templateFields {
		present[name] = true
	}

	values := make([]FieldValue, 0, len(Bindings))
	for _, b := range Bindings {
		if !present[b.Name] {
			r.skip(src.App.ID, b.Name, "field not in template")
			continue
		}
		v, err := evaluate(b, src)
		if err != nil {
			r.skip(src.App.ID, b.Name, err.Error())
			continue
		}
		values = append(values, FieldValue{Name: b.Name, Value: v})
	}
	return values
}

func (r *Renderer) skip(applicationID, field, reason string) {
	metrics.LetterFieldSkips.WithLabelValues(field).Inc()
	r.logger.Warn("letter field skipped", map[string]interface{}{
		"applicationId": applicationID,
		"field":         field,
		"reason":        reason,
	})
}

func evaluate(b FieldBinding, src Source) (v string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("binding %s: %v", b.Name, rec)
		}
	}()
	return b.Value(src), nil
}

func (r *Renderer) write(path string, tpl []byte, values []FieldValue) (*FillReport, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	report, err := r.engine.Fill(bytes.NewReader(tpl), values, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// Filename is visa-request-letter-<first>-<last>.pdf, with Unknown for a
// blank name.
func Filename(first, last string) string {
	part := func(s string) string {
		s = strings.TrimSpace(filenameReplacer.Replace(s))
		if s == "" {
			return "Unknown"
		}
		return s
	}
	return fmt.Sprintf("visa-request-letter-%s-%s.pdf", part(first), part(last))
}
