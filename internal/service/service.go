// Package service holds the use cases behind the HTTP API: application
// lifecycle, meeting administration, bulk transfer and visa letters. Every
// method takes the calling actor and returns *errors.StandardError values the
// transport layer can map directly.
package service

import (
	"context"
	stderrors "errors"
	"time"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/letter"
	"visa-portal/internal/models"
	"visa-portal/internal/search"
	"visa-portal/internal/store"
)

// Indexer mirrors applications into the search index.
type Indexer interface {
	Index(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id string) error
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type LetterRenderer interface {
	Render(ctx context.Context, app *models.Application, meeting *models.Meeting) (*letter.Result, error)
}

// ProcessStarter launches the review workflow for a decided application.
type ProcessStarter interface {
	Start(ctx context.Context, variables map[string]interface{}) (int64, error)
}

type auditor struct {
	audit  store.AuditStore
	logger logger.Logger
}

// record writes an audit entry. Failures are logged and swallowed so the
// audit trail never blocks the operation it describes.
func (a auditor) record(ctx context.Context, entry models.AuditEntry) {
	if err := a.audit.Record(ctx, entry); err != nil {
		a.logger.Warn("audit write failed", map[string]interface{}{
			"action":   entry.Action,
			"entityId": entry.EntityID,
			"error":    err.Error(),
		})
	}
}

func requireAdmin(actor models.Actor, op string) error {
	if !actor.IsAdmin() {
		return errors.NewForbiddenError(op + " requires the admin role")
	}
	return nil
}

func applicationErr(op, id string, err error) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewApplicationNotFoundError(id)
	}
	return errors.NewQueryExecutionFailedError(op, err)
}

func meetingErr(op, id string, err error) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewMeetingNotFoundError("meetingId: " + id)
	}
	return errors.NewQueryExecutionFailedError(op, err)
}

func utcNow() time.Time { return time.Now().UTC() }
