// internal/workers/visa/notify-status/handler.go
package notifystatus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

const TaskType = "notify-status-change"

// EmailSender is satisfied by *aws.Mailer.
type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender is satisfied by *aws.SMSSender.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type template struct {
	subject string
	body    string
	sms     string
}

var templates = map[models.Status]template{
	models.StatusApproved: {
		subject: "Visa letter request approved: {{meetingName}}",
		body: "Dear {{fullName}},\n\nYour visa letter request for {{meetingName}} has been approved. " +
			"Your letter will be sent to you shortly and can also be downloaded from the portal.\n",
		sms: "Your visa letter request for {{meetingName}} was approved.",
	},
	models.StatusRejected: {
		subject: "Visa letter request update: {{meetingName}}",
		body: "Dear {{fullName}},\n\nWe are unable to issue a visa letter for {{meetingName}}. " +
			"Please contact the meeting organisers for more information.\n",
		sms: "Your visa letter request for {{meetingName}} could not be approved. Check your email for details.",
	},
}

type Handler struct {
	config *Config
	stores store.Stores
	email  EmailSender
	sms    SMSSender
	errors *errors.ErrorHandler
	logger logger.Logger
}

// NewHandler builds the handler. email and sms may be nil when the
// corresponding channel is disabled.
func NewHandler(config *Config, stores store.Stores, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		stores: stores,
		email:  email,
		sms:    sms,
		errors: errors.NewErrorHandler(log),
		logger: log,
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

	// The stored status wins over the process variable; an admin may have
	// changed it again since the instance started.
	status := app.Status
	if input.Status != "" && models.ParseStatus(input.Status) != status {
		h.logger.Warn("status changed since process start", map[string]interface{}{
			"applicationId": app.ID,
			"processStatus": input.Status,
			"currentStatus": string(status),
		})
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	tmpl, ok := templates[status]
	if !ok {
		h.logger.Info("no notification for status", map[string]interface{}{
			"applicationId": app.ID,
			"status":        string(status),
		})
		return output, nil
	}

	meetingName := app.MeetingID
	if meeting, err := h.stores.Meetings().GetByID(ctx, app.MeetingID); err == nil {
		meetingName = meeting.Name
	}
	data := map[string]interface{}{
		"fullName":    app.FullName(),
		"firstName":   app.FirstName,
		"meetingName": meetingName,
		"status":      string(status),
	}

	if h.config.EmailEnabled && h.email != nil && app.Email != "" {
		id, err := h.email.SendText(ctx, app.Email, renderTemplate(tmpl.subject, data), renderTemplate(tmpl.body, data))
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("status-email", err)
		}
		output.EmailID = id
		output.Status = StatusSent
	}

	// SMS is a courtesy copy; its failure does not fail the job once the
	// email went out.
	if h.config.SMSEnabled && h.sms != nil && app.Phone != "" {
		id, err := h.sms.SendSMS(ctx, app.Phone, renderTemplate(tmpl.sms, data))
		switch {
		case err == nil:
			output.SMSID = id
			output.Status = StatusSent
		case output.EmailID == "":
			return nil, errors.NewNotificationSendFailedError("status-sms", err)
		default:
			h.logger.Warn("SMS send failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}

	return output, nil
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

// renderTemplate replaces {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
