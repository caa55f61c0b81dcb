// internal/workers/visa/import-applications/handler_test.go
package importapplications

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/importer"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store/storetest"
)

const upload = "applicationDate,meetingName,firstName,lastName,email,passportNumber,status\n" +
	"2025-01-15,Annual Assembly 2025,Lena,Marsh,lena@example.org,0012345,Approved\n" +
	"2025-01-16,Nonexistent 2099,Ada,Okafor,ada@example.org,0099999,Pending\n"

func setup(t *testing.T, cfg *Config) (*Handler, *storetest.Memory) {
	t.Helper()
	log := logger.NewTestLogger(t)
	mem := storetest.NewMemory()
	mem.AddMeeting(models.Meeting{
		ID: "m-1", Name: "Annual Assembly 2025", Active: true,
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
	})
	rec := importer.NewReconciler(mem, importer.NewStoreMeetingResolver(mem.Meetings()), nil, log)
	return NewHandler(cfg, rec, mem.Audit(), log), mem
}

func writeUpload(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestHandler_Execute_ImportsFile(t *testing.T) {
	inbox := t.TempDir()
	writeUpload(t, inbox, "batch.csv", upload)
	h, mem := setup(t, &Config{InboxDir: inbox, RemoveProcessed: true, Timeout: time.Minute})

	out, err := h.Execute(context.Background(), &Input{FilePath: "batch.csv", ActorID: "admin-7"})
	require.NoError(t, err)

	assert.Equal(t, 2, out.ImportSummary.Total)
	assert.Equal(t, 1, out.ImportSummary.Successful)
	assert.Equal(t, 1, out.ImportSummary.Failed)
	assert.Equal(t, 1, mem.CountApplications())

	_, statErr := os.Stat(filepath.Join(inbox, "batch.csv"))
	assert.True(t, os.IsNotExist(statErr))

	entries := mem.AuditEntries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, models.AuditApplicationsImported, last.Action)
	assert.Equal(t, "admin-7", last.ActorID)
}

func TestHandler_Execute_KeepsFileByDefault(t *testing.T) {
	dir := t.TempDir()
	p := writeUpload(t, dir, "batch.csv", upload)
	h, _ := setup(t, &Config{Timeout: time.Minute})

	_, err := h.Execute(context.Background(), &Input{FilePath: p})
	require.NoError(t, err)
	_, statErr := os.Stat(p)
	assert.NoError(t, statErr)
}

func TestHandler_Execute_Errors(t *testing.T) {
	inbox := t.TempDir()
	writeUpload(t, inbox, "big.csv", upload)
	writeUpload(t, inbox, "legacy.xls", "not really excel")

	tests := []struct {
		name     string
		cfg      *Config
		path     string
		wantCode errors.ErrorCode
	}{
		{name: "missing path", cfg: &Config{}, path: "", wantCode: errors.ErrCodeApplicationValidationFailed},
		{name: "escapes inbox", cfg: &Config{InboxDir: inbox}, path: "../etc/passwd", wantCode: errors.ErrCodeForbidden},
		{name: "absolute outside inbox", cfg: &Config{InboxDir: inbox}, path: "/etc/hosts", wantCode: errors.ErrCodeForbidden},
		{name: "missing file", cfg: &Config{InboxDir: inbox}, path: "nope.csv", wantCode: errors.ErrCodeImportParseFailed},
		{name: "too large", cfg: &Config{InboxDir: inbox, MaxFileBytes: 10}, path: "big.csv", wantCode: errors.ErrCodeImportParseFailed},
		{name: "legacy xls", cfg: &Config{InboxDir: inbox}, path: "legacy.xls", wantCode: errors.ErrCodeImportParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Timeout = time.Minute
			h, mem := setup(t, tt.cfg)

			_, err := h.Execute(context.Background(), &Input{FilePath: tt.path})
			stdErr, ok := errors.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Zero(t, mem.CountApplications())
		})
	}
}

type failingImporter struct{}

func (failingImporter) Import(context.Context, []records.Row, models.Actor) (*importer.Summary, error) {
	return nil, stderrors.New("context canceled")
}

func TestHandler_Execute_ImporterFailure(t *testing.T) {
	dir := t.TempDir()
	p := writeUpload(t, dir, "batch.csv", upload)
	mem := storetest.NewMemory()
	h := NewHandler(&Config{Timeout: time.Minute}, failingImporter{}, mem.Audit(), logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{FilePath: p})
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInternal, stdErr.Code)
	assert.Empty(t, mem.AuditEntries())
}
