// Package importer reconciles bulk-uploaded application rows against the
// stored applications of a meeting.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store"
)

// Indexer receives every persisted row. Failures are logged, never returned
// to the caller.
type Indexer interface {
	Index(ctx context.Context, app *models.Application) error
}

type RowError struct {
	Row   int    `json:"row"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

type UpdatedRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PassportNumber string `json:"passportNumber"`
}

// Summary reports an import. Successful counts inserts and updates alike;
// Updated is the subset that matched an existing record.
type Summary struct {
	Total          int             `json:"total"`
	Successful     int             `json:"successful"`
	Updated        int             `json:"updated"`
	Failed         int             `json:"failed"`
	Errors         []RowError      `json:"errors"`
	UpdatedRecords []UpdatedRecord `json:"updatedRecords"`
}

type Reconciler struct {
	tx       store.TxRunner
	meetings MeetingResolver
	indexer  Indexer
	logger   logger.Logger
	now      func() time.Time
}

func NewReconciler(tx store.TxRunner, meetings MeetingResolver, indexer Indexer, log logger.Logger) *Reconciler {
	return &Reconciler{
		tx:       tx,
		meetings: meetings,
		indexer:  indexer,
		logger:   log.WithFields(map[string]interface{}{"component": "import-reconciler"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Import processes rows in order. A failing row is recorded and skipped;
// only a cancelled context stops the batch. Row numbers in errors are slice
// positions, so blank rows (nil or all-empty) are skipped without being
// counted but still advance the numbering.
func (r *Reconciler) Import(ctx context.Context, rows []records.Row, actor models.Actor) (*Summary, error) {
	summary := &Summary{
		Errors:         []RowError{},
		UpdatedRecords: []UpdatedRecord{},
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if row.Blank() {
			continue
		}
		summary.Total++

		app, updated, err := r.importRow(ctx, row, actor)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, RowError{
				Row:   i + 1,
				Name:  row.ApplicantName(),
				Error: err.Error(),
			})
			metrics.ImportRows.WithLabelValues("failed").Inc()
			continue
		}

		summary.Successful++
		if updated {
			summary.Updated++
			summary.UpdatedRecords = append(summary.UpdatedRecords, UpdatedRecord{
				ID:             app.ID,
				Name:           app.FullName(),
				PassportNumber: app.PassportNumber,
			})
			metrics.ImportRows.WithLabelValues("updated").Inc()
		} else {
			metrics.ImportRows.WithLabelValues("inserted").Inc()
		}

		if r.indexer != nil {
			if err := r.indexer.Index(ctx, app); err != nil {
				r.logger.Warn("search indexing failed", map[string]interface{}{
					"applicationId": app.ID,
					"error":         err.Error(),
				})
			}
		}
	}

	r.logger.Info("import finished", map[string]interface{}{
		"actorId":    actor.ID,
		"total":      summary.Total,
		"successful": summary.Successful,
		"updated":    summary.Updated,
		"failed":     summary.Failed,
	})
	return summary, nil
}

func (r *Reconciler) importRow(ctx context.Context, row records.Row, actor models.Actor) (*models.Application, bool, error) {
	draft, err := records.Normalize(row)
	if err != nil {
		return nil, false, err
	}

	meeting, err := r.meetings.ResolveByName(ctx, draft.MeetingName)
	if errors.Is(err, ErrMeetingNotFound) {
		return nil, false, fmt.Errorf("Meeting not found: %s", draft.MeetingName)
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve meeting: %w", err)
	}

	var (
		saved   *models.Application
		updated bool
	)
	err = r.tx.WithTx(ctx, func(tx store.TxStores) error {
		if err := tx.LockKey(ctx, draft.PassportNumber+"|"+meeting.ID); err != nil {
			return err
		}

		now := r.now()
		existing, err := tx.Applications().FindByPassportAndMeeting(ctx, draft.PassportNumber, meeting.ID)
		switch {
		case err == nil:
			draft.Apply(existing)
			stampImported(existing, actor, now)
			if err := existing.ValidateDates(); err != nil {
				return err
			}
			if err := tx.Applications().Update(ctx, existing); err != nil {
				return fmt.Errorf("update application: %w", err)
			}
			saved, updated = existing, true
			return nil

		case errors.Is(err, store.ErrNotFound):
			app := &models.Application{
				ID:        uuid.NewString(),
				UserID:    actor.ID,
				MeetingID: meeting.ID,
				CreatedAt: draft.ApplicationDate,
			}
			draft.Apply(app)
			stampImported(app, actor, now)
			if err := app.ValidateDates(); err != nil {
				return err
			}
			if err := tx.Applications().Create(ctx, app); err != nil {
				return fmt.Errorf("create application: %w", err)
			}
			saved = app
			return nil

		default:
			return fmt.Errorf("find application: %w", err)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return saved, updated, nil
}

func stampImported(app *models.Application, actor models.Actor, now time.Time) {
	app.IsImported = true
	app.ImportedBy = actor.ID
	app.LastUpdatedBy = actor.ID
	app.UpdatedAt = now
}
