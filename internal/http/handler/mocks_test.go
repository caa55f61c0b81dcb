package handler_test

import (
	"context"

	"visa-portal/internal/exporter"
	"visa-portal/internal/importer"
	"visa-portal/internal/letter"
	"visa-portal/internal/models"
	"visa-portal/internal/search"
	"visa-portal/internal/service"
)

type mockApplicationService struct {
	service.ApplicationService

	submitFn    func(ctx context.Context, actor models.Actor, payload map[string]interface{}) (*models.Application, error)
	setStatusFn func(ctx context.Context, actor models.Actor, id, status string) (*models.Application, error)
	letterFn    func(ctx context.Context, actor models.Actor, id string) (*letter.Result, error)
	searchFn    func(ctx context.Context, actor models.Actor, q search.Query) (*search.Result, error)
}

func (m *mockApplicationService) Submit(ctx context.Context, actor models.Actor, payload map[string]interface{}) (*models.Application, error) {
	return m.submitFn(ctx, actor, payload)
}

func (m *mockApplicationService) SetStatus(ctx context.Context, actor models.Actor, id, status string) (*models.Application, error) {
	return m.setStatusFn(ctx, actor, id, status)
}

func (m *mockApplicationService) Letter(ctx context.Context, actor models.Actor, id string) (*letter.Result, error) {
	return m.letterFn(ctx, actor, id)
}

func (m *mockApplicationService) Search(ctx context.Context, actor models.Actor, q search.Query) (*search.Result, error) {
	return m.searchFn(ctx, actor, q)
}

type mockTransferService struct {
	importFn func(ctx context.Context, actor models.Actor, filename string, data []byte) (*importer.Summary, error)
	exportFn func(ctx context.Context, actor models.Actor, meetingID, format string) (*exporter.File, error)
}

func (m *mockTransferService) Import(ctx context.Context, actor models.Actor, filename string, data []byte) (*importer.Summary, error) {
	return m.importFn(ctx, actor, filename, data)
}

func (m *mockTransferService) Export(ctx context.Context, actor models.Actor, meetingID, format string) (*exporter.File, error) {
	return m.exportFn(ctx, actor, meetingID, format)
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                 { return s.name }
func (s stubChecker) Ping(_ context.Context) error { return s.err }
