package service

import (
	"context"
	stderrors "errors"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/exporter"
	"visa-portal/internal/importer"
	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

// TransferService moves applications in and out of the portal in bulk.
type TransferService interface {
	Import(ctx context.Context, actor models.Actor, filename string, data []byte) (*importer.Summary, error)
	Export(ctx context.Context, actor models.Actor, meetingID, format string) (*exporter.File, error)
}

type transferService struct {
	reconciler *importer.Reconciler
	exporter   *exporter.Exporter
	logger     logger.Logger
	auditor    auditor
}

func NewTransferService(reconciler *importer.Reconciler, exp *exporter.Exporter, audit store.AuditStore, log logger.Logger) TransferService {
	log = log.WithFields(map[string]interface{}{"component": "transfer"})
	return &transferService{
		reconciler: reconciler,
		exporter:   exp,
		logger:     log,
		auditor:    auditor{audit: audit, logger: log},
	}
}

// Import decodes an uploaded sheet and reconciles it row by row. A file that
// cannot be decoded fails as a whole; individual bad rows are reported in the
// summary and never fail the call.
func (s *transferService) Import(ctx context.Context, actor models.Actor, filename string, data []byte) (*importer.Summary, error) {
	if err := requireAdmin(actor, "importing applications"); err != nil {
		return nil, err
	}

	rows, err := importer.Decode(filename, data)
	if err != nil {
		return nil, errors.NewImportParseFailedError(err)
	}

	summary, err := s.reconciler.Import(ctx, rows, actor)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationsImported,
		Resource: "import",
		EntityID: filename,
		ActorID:  actor.ID,
		Details: map[string]interface{}{
			"total":      summary.Total,
			"successful": summary.Successful,
			"updated":    summary.Updated,
			"failed":     summary.Failed,
		},
	})
	s.logger.Info("import finished", map[string]interface{}{
		"file":       filename,
		"total":      summary.Total,
		"successful": summary.Successful,
		"updated":    summary.Updated,
		"failed":     summary.Failed,
	})
	return summary, nil
}

func (s *transferService) Export(ctx context.Context, actor models.Actor, meetingID, format string) (*exporter.File, error) {
	if err := requireAdmin(actor, "exporting applications"); err != nil {
		return nil, err
	}
	f, err := exporter.ParseFormat(format)
	if err != nil {
		return nil, errors.NewApplicationValidationFailedError(err.Error())
	}

	file, err := s.exporter.Export(ctx, meetingID, f)
	switch {
	case err == nil:
	case stderrors.Is(err, exporter.ErrNoRecords):
		return nil, errors.NewExportNoRecordsError(meetingID)
	default:
		return nil, meetingErr("export applications", meetingID, err)
	}

	s.auditor.record(ctx, models.AuditEntry{
		Action:   models.AuditApplicationsExported,
		Resource: "meeting",
		EntityID: meetingID,
		ActorID:  actor.ID,
		Details:  map[string]interface{}{"format": string(f), "count": file.Count},
	})
	return file, nil
}
