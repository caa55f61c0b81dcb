package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/validation"
	"visa-portal/internal/letter"
	"visa-portal/internal/models"
	"visa-portal/internal/search"
	"visa-portal/internal/store"
)

var errSearchDisabled = stderrors.New("search index is not configured")

type ApplicationService interface {
	Submit(ctx context.Context, actor models.Actor, payload map[string]interface{}) (*models.Application, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Application, error)
	ListMine(ctx context.Context, actor models.Actor) ([]*models.Application, error)
	Patch(ctx context.Context, actor models.Actor, id string, payload map[string]interface{}) (*models.Application, error)
	SetStatus(ctx context.Context, actor models.Actor, id, status string) (*models.Application, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Letter(ctx context.Context, actor models.Actor, id string) (*letter.Result, error)
	Search(ctx context.Context, actor models.Actor, q search.Query) (*search.Result, error)
}

// ApplicationDeps wires an ApplicationService. Indexer, Searcher and Starter
// are optional and leave their feature disabled when nil.
type ApplicationDeps struct {
	Store     store.Stores
	Validator *validation.Validator
	Renderer  LetterRenderer
	Indexer   Indexer
	Searcher  Searcher
	Starter   ProcessStarter
	Logger    logger.Logger
}

type applicationService struct {
	stores    store.Stores
	validator *validation.Validator
	renderer  LetterRenderer
	indexer   Indexer
	searcher  Searcher
	starter   ProcessStarter
	logger    logger.Logger
	auditor   auditor
	now       func() time.Time
}

func NewApplicationService(deps ApplicationDeps) ApplicationService {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "applications"})
	return &applicationService{
		stores:    deps.Store,
		validator: deps.Validator,
		renderer:  deps.Renderer,
		indexer:   deps.Indexer,
		searcher:  deps.Searcher,
		starter:   deps.Starter,
		logger:    log,
		auditor:   auditor{audit: deps.Store.Audit(), logger: log},
		now:       utcNow,
	}
}

func (s *applicationService) validate(schema string, payload map[string]interface{}) error {
	errs, err := s.validator.Validate(schema, payload)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if len(errs) > 0 {
		stdErr := errors.NewApplicationValidationFailedError(validation.Summary(errs))
		stdErr.Metadata = map[string]interface{}{"fields": errs}
		return stdErr
	}
	return nil
}

func (s *applicationService) Submit(ctx context.Context, actor models.Actor, payload map[string]interface{}) (*models.Application, error) {
	if err := s.validate(validation.SchemaApplicationSubmit, payload); err != nil {
		return nil, err
	}

	meetingID, _ := payload["meetingId"].(string)
	meeting, err := s.stores.Meetings().GetByID(ctx, meetingID)
	if err != nil {
		return nil, meetingErr("get meeting", meetingID, err)
	}
	if !meeting.Active {
		return nil, errors.NewApplicationValidationFailedError(
			fmt.Sprintf("meeting %q is not accepting applications", meeting.Name))
	}

	now := s.now()
	app := &models.Application{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		MeetingID: meeting.ID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := applyPayload(app, payload, false); err != nil {
		return nil, errors.NewApplicationValidationFailedError(err.Error())
	}
	trimNames(app)
	if err := app.ValidateDates(); err != nil {
		return nil, errors.NewInvalidDatesError(err)
	}

	if err := s.stores.Applications().Create(ctx, app); err != nil {
		return nil, errors.NewQueryExecutionFailedError("create application", err)
	}
	s.index(ctx, app)
	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationCreated,
		EntityID: app.ID,
		ActorID:  actor.ID,
		Details:  map[string]interface{}{"meetingId": app.MeetingID},
	})

	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"meetingId":     app.MeetingID,
		"userId":        actor.ID,
	})
	return app, nil
}

func (s *applicationService) Get(ctx context.Context, actor models.Actor, id string) (*models.Application, error) {
	app, err := s.stores.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, applicationErr("get application", id, err)
	}
	if !actor.CanAccess(app) {
		// Foreign applications look missing rather than forbidden.
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app, nil
}

func (s *applicationService) ListMine(ctx context.Context, actor models.Actor) ([]*models.Application, error) {
	apps, err := s.stores.Applications().ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list applications", err)
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	return apps, nil
}

func (s *applicationService) Patch(ctx context.Context, actor models.Actor, id string, payload map[string]interface{}) (*models.Application, error) {
	if err := s.validate(validation.SchemaApplicationPatch, payload); err != nil {
		return nil, err
	}

	app, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if app.Status != models.StatusPending {
			return nil, errors.NewApplicationLockedError(id)
		}
		for key := range payload {
			if _, ok := adminFields[key]; ok {
				return nil, errors.NewForbiddenError(key + " can only be changed by an admin")
			}
		}
	}

	changed, err := applyPayload(app, payload, actor.IsAdmin())
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError(err.Error())
	}
	trimNames(app)
	if err := app.ValidateDates(); err != nil {
		return nil, errors.NewInvalidDatesError(err)
	}
	app.LastUpdatedBy = actor.ID
	app.UpdatedAt = s.now()

	if err := s.stores.Applications().Update(ctx, app); err != nil {
		return nil, applicationErr("update application", id, err)
	}
	s.index(ctx, app)
	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationUpdated,
		EntityID: app.ID,
		ActorID:  actor.ID,
		Details:  map[string]interface{}{"fields": changed},
	})
	return app, nil
}

func (s *applicationService) SetStatus(ctx context.Context, actor models.Actor, id, status string) (*models.Application, error) {
	if err := requireAdmin(actor, "changing status"); err != nil {
		return nil, err
	}
	next := models.Status(status)
	if !next.Valid() {
		return nil, errors.NewApplicationValidationFailedError(
			fmt.Sprintf("status must be one of Pending, Approved, Rejected (got %q)", status))
	}

	app, err := s.stores.Applications().GetByID(ctx, id)
	if err != nil {
		return nil, applicationErr("get application", id, err)
	}
	previous := app.Status
	app.Status = next
	app.LastUpdatedBy = actor.ID
	app.UpdatedAt = s.now()

	if err := s.stores.Applications().Update(ctx, app); err != nil {
		return nil, applicationErr("update status", id, err)
	}
	s.index(ctx, app)
	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditStatusChanged,
		EntityID: app.ID,
		ActorID:  actor.ID,
		Details:  map[string]interface{}{"from": string(previous), "to": string(next)},
	})

	if previous != next && next != models.StatusPending {
		s.startWorkflow(ctx, app)
	}
	return app, nil
}

// startWorkflow hands a decided application to the letter process. The
// status change is already committed, so a failure here is only logged.
func (s *applicationService) startWorkflow(ctx context.Context, app *models.Application) {
	if s.starter == nil {
		return
	}
	key, err := s.starter.Start(ctx, map[string]interface{}{
		"applicationId": app.ID,
		"meetingId":     app.MeetingID,
		"status":        string(app.Status),
		"email":         app.Email,
		"phone":         app.Phone,
		"firstName":     app.FirstName,
		"lastName":      app.LastName,
	})
	if err != nil {
		s.logger.Warn("could not start letter process", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return
	}
	s.logger.Info("letter process started", map[string]interface{}{
		"applicationId":      app.ID,
		"processInstanceKey": key,
	})
}

func (s *applicationService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor, "deleting applications"); err != nil {
		return err
	}
	if err := s.stores.Applications().Delete(ctx, id); err != nil {
		return applicationErr("delete application", id, err)
	}
	if s.indexer != nil {
		if err := s.indexer.Delete(ctx, id); err != nil {
			s.logger.Warn("search delete failed", map[string]interface{}{"applicationId": id, "error": err.Error()})
		}
	}
	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationDeleted,
		EntityID: id,
		ActorID:  actor.ID,
	})
	return nil
}

// Letter renders the visa request letter. The returned file belongs to the
// caller, which must remove it once streamed.
func (s *applicationService) Letter(ctx context.Context, actor models.Actor, id string) (*letter.Result, error) {
	app, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusApproved {
		return nil, errors.NewStatusNotApprovedError(app.ID, string(app.Status))
	}
	meeting, err := s.stores.Meetings().GetByID(ctx, app.MeetingID)
	if err != nil {
		return nil, meetingErr("get meeting", app.MeetingID, err)
	}

	res, err := s.renderer.Render(ctx, app, meeting)
	if err != nil {
		return nil, letterErr(app, err)
	}

	if err := s.stores.Applications().MarkLetterGenerated(ctx, app.ID, s.now()); err != nil {
		_ = os.Remove(res.Path)
		return nil, applicationErr("mark letter generated", app.ID, err)
	}
	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditLetterGenerated,
		EntityID: app.ID,
		ActorID:  actor.ID,
		Details: map[string]interface{}{
			"bytes":      res.Size,
			"normalized": res.SizeAnalysis.Normalized,
		},
	})
	return res, nil
}

// letterErr maps renderer failures onto API error codes.
func letterErr(app *models.Application, err error) error {
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

func (s *applicationService) Search(ctx context.Context, actor models.Actor, q search.Query) (*search.Result, error) {
	if err := requireAdmin(actor, "searching applications"); err != nil {
		return nil, err
	}
	if s.searcher == nil {
		return nil, errors.NewExternalServiceError("elasticsearch", errSearchDisabled)
	}
	res, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	return res, nil
}

func (s *applicationService) index(ctx context.Context, app *models.Application) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Index(ctx, app); err != nil {
		s.logger.Warn("search index failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
}

func trimNames(app *models.Application) {
	app.FirstName = strings.TrimSpace(app.FirstName)
	app.LastName = strings.TrimSpace(app.LastName)
	app.Email = strings.TrimSpace(app.Email)
	app.PassportNumber = strings.TrimSpace(app.PassportNumber)
}
