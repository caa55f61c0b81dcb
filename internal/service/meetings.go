package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

type MeetingInput struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Location  string `json:"location"`
	Active    *bool  `json:"active"`
}

type MeetingService interface {
	Create(ctx context.Context, actor models.Actor, in MeetingInput) (*models.Meeting, error)
	List(ctx context.Context, actor models.Actor, activeOnly bool) ([]*models.Meeting, error)
}

type meetingService struct {
	meetings store.MeetingStore
	logger   logger.Logger
	now      func() time.Time
}

func NewMeetingService(meetings store.MeetingStore, log logger.Logger) MeetingService {
	return &meetingService{
		meetings: meetings,
		logger:   log.WithFields(map[string]interface{}{"component": "meetings"}),
		now:      utcNow,
	}
}

func (s *meetingService) Create(ctx context.Context, actor models.Actor, in MeetingInput) (*models.Meeting, error) {
	if err := requireAdmin(actor, "creating meetings"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.NewApplicationValidationFailedError("name is required")
	}
	start, err := time.Parse(models.DateLayout, in.StartDate)
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateLayout, in.EndDate)
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError("endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, errors.NewApplicationValidationFailedError("endDate must be on or after startDate")
	}

	// Names are the import key, so they must stay unique.
	if _, err := s.meetings.GetByName(ctx, name); err == nil {
		return nil, errors.NewApplicationValidationFailedError(fmt.Sprintf("meeting %q already exists", name))
	} else if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewQueryExecutionFailedError("get meeting by name", err)
	}

	m := &models.Meeting{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Location:  strings.TrimSpace(in.Location),
		Active:    in.Active == nil || *in.Active,
		CreatedAt: s.now(),
	}
	if err := s.meetings.Create(ctx, m); err != nil {
		return nil, errors.NewQueryExecutionFailedError("create meeting", err)
	}
	s.logger.Info("meeting created", map[string]interface{}{"meetingId": m.ID, "name": m.Name})
	return m, nil
}

// List returns meetings newest first. Non-admins only ever see active ones.
func (s *meetingService) List(ctx context.Context, actor models.Actor, activeOnly bool) ([]*models.Meeting, error) {
	if !actor.IsAdmin() {
		activeOnly = true
	}
	meetings, err := s.meetings.List(ctx, activeOnly)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list meetings", err)
	}
	if meetings == nil {
		meetings = []*models.Meeting{}
	}
	return meetings, nil
}
