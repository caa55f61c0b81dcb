// internal/workers/visa/import-applications/handler.go
package importapplications

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/importer"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store"
)

const (
	TaskType = "import-applications"

	defaultActor = "workflow:" + TaskType
)

// Importer is satisfied by *importer.Reconciler.
type Importer interface {
	Import(ctx context.Context, rows []records.Row, actor models.Actor) (*importer.Summary, error)
}

type Handler struct {
	config   *Config
	importer Importer
	audit    store.AuditStore
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, imp Importer, audit store.AuditStore, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		importer: imp,
		audit:    audit,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := errors.NewApplicationValidationFailedError(fmt.Sprintf("parse input: %v", err))
		h.errors.HandleJobError(context.Background(), client, job, stdErr)
		return stdErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}
	return h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	path, err := h.resolvePath(input.FilePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewImportParseFailedError(fmt.Errorf("stat %s: %w", filepath.Base(path), err))
	}
	if h.config.MaxFileBytes > 0 && info.Size() > h.config.MaxFileBytes {
		return nil, errors.NewImportParseFailedError(
			fmt.Errorf("file is %d bytes, limit is %d", info.Size(), h.config.MaxFileBytes))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewImportParseFailedError(err)
	}
	rows, err := importer.Decode(path, data)
	if err != nil {
		return nil, errors.NewImportParseFailedError(err)
	}

	actor := models.Actor{ID: input.ActorID, Role: models.RoleAdmin}
	if actor.ID == "" {
		actor.ID = defaultActor
	}

	summary, err := h.importer.Import(ctx, rows, actor)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	h.logger.Info("import finished", map[string]interface{}{
		"file":       filepath.Base(path),
		"total":      summary.Total,
		"successful": summary.Successful,
		"updated":    summary.Updated,
		"failed":     summary.Failed,
	})

	if err := h.audit.Record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationsImported,
		Resource: "import",
		ActorID:  actor.ID,
		Details: map[string]interface{}{
			"file":       filepath.Base(path),
			"total":      summary.Total,
			"successful": summary.Successful,
			"failed":     summary.Failed,
		},
	}); err != nil {
		h.logger.Warn("audit write failed", map[string]interface{}{"error": err.Error()})
	}

	if h.config.RemoveProcessed {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove processed file", map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			})
		}
	}

	return &Output{
		ImportSummary: summary,
		ImportedAt:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// resolvePath keeps the job inside the inbox directory when one is set.
func (h *Handler) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.NewApplicationValidationFailedError("filePath is required")
	}
	if h.config.InboxDir == "" {
		return filepath.Clean(p), nil
	}

	inbox, err := filepath.Abs(h.config.InboxDir)
	if err != nil {
		return "", errors.NewInternalError(err)
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(inbox, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(inbox, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewForbiddenError(fmt.Sprintf("%s is outside the import inbox", p))
	}
	return full, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
