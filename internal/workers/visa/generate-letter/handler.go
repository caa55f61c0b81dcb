// internal/workers/visa/generate-letter/handler.go
package generateletter

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"visa-portal/internal/common/aws"
	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/letter"
	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

const (
	TaskType = "generate-visa-letter"

	workflowActor = "workflow:" + TaskType
)

// Renderer fills the letter template. *letter.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, app *models.Application, meeting *models.Meeting) (*letter.Result, error)
}

// Mailer delivers the rendered letter. *aws.Mailer satisfies it.
type Mailer interface {
	SendWithAttachment(ctx context.Context, to, subject, body string, att aws.Attachment) (string, error)
}

type Handler struct {
	config   *Config
	stores   store.Stores
	renderer Renderer
	mailer   Mailer
	errors   *errors.ErrorHandler
	logger   logger.Logger
	now      func() time.Time
}

// NewHandler builds the handler. mailer may be nil when SES is disabled.
func NewHandler(config *Config, stores store.Stores, renderer Renderer, mailer Mailer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		stores:   stores,
		renderer: renderer,
		mailer:   mailer,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
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
	if input.ApplicationID == "" {
		return nil, errors.NewApplicationValidationFailedError("applicationId is required")
	}

	app, err := h.stores.Applications().GetByID(ctx, input.ApplicationID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewApplicationNotFoundError(input.ApplicationID)
		}
		return nil, errors.NewQueryExecutionFailedError("load application", err)
	}
	// The process may run after an admin moved the application back.
	if app.Status != models.StatusApproved {
		return nil, errors.NewStatusNotApprovedError(app.ID, string(app.Status))
	}

	meeting, err := h.stores.Meetings().GetByID(ctx, app.MeetingID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewMeetingNotFoundError(app.MeetingID)
		}
		return nil, errors.NewQueryExecutionFailedError("load meeting", err)
	}

	res, err := h.renderer.Render(ctx, app, meeting)
	if err != nil {
		return nil, renderErr(app, err)
	}
	defer func() {
		if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove letter file", map[string]interface{}{
				"path":  res.Path,
				"error": err.Error(),
			})
		}
	}()

	now := h.now()
	if err := h.stores.Applications().MarkLetterGenerated(ctx, app.ID, now); err != nil {
		return nil, errors.NewQueryExecutionFailedError("mark letter generated", err)
	}

	output := &Output{
		ApplicationID:   app.ID,
		Filename:        res.Filename,
		Size:            res.Size,
		Normalized:      res.SizeAnalysis.Normalized,
		EmailStatus:     EmailDisabled,
		LetterGenerated: now.Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.mailer != nil {
		if app.Email == "" {
			output.EmailStatus = EmailSkipped
		} else {
			id, err := h.sendLetter(ctx, app, meeting, res)
			if err != nil {
				return nil, errors.NewNotificationSendFailedError("letter-email", err)
			}
			output.EmailStatus = EmailSent
			output.EmailMessageID = id
		}
	}

	if err := h.stores.Audit().Record(ctx, models.AuditEntry{
		Action:   models.AuditLetterGenerated,
		EntityID: app.ID,
		ActorID:  workflowActor,
		Details: map[string]interface{}{
			"bytes":       res.Size,
			"emailStatus": output.EmailStatus,
		},
		CreatedAt: now,
	}); err != nil {
		h.logger.Warn("audit write failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}

	return output, nil
}

func (h *Handler) sendLetter(ctx context.Context, app *models.Application, meeting *models.Meeting, res *letter.Result) (string, error) {
	content, err := os.ReadFile(res.Path)
	if err != nil {
		return "", fmt.Errorf("read letter: %w", err)
	}
	body := fmt.Sprintf(
		"Dear %s,\n\nPlease find attached your visa request letter for %s.\n",
		app.FullName(), meeting.Name,
	)
	return h.mailer.SendWithAttachment(ctx, app.Email, h.config.Subject, body, aws.Attachment{
		Filename:    res.Filename,
		ContentType: "application/pdf",
		Content:     content,
	})
}

func renderErr(app *models.Application, err error) error {
	switch {
	case stderrors.Is(err, letter.ErrNotApproved):
		return errors.NewStatusNotApprovedError(app.ID, string(app.Status))
	case stderrors.Is(err, letter.ErrTemplateNotFound):
		return errors.NewTemplateNotFoundError(err.Error(), err)
	case stderrors.Is(err, letter.ErrTemplateInvalid):
		return errors.NewTemplateInvalidError(err)
	default:
		return errors.NewLetterGenerationFailedError(err)
	}
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
