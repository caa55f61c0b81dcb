package importer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/exporter"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store/storetest"
)

var admin = models.Actor{ID: "admin-1", Role: models.RoleAdmin}

type recordingIndexer struct {
	ids []string
	err error
}

func (r *recordingIndexer) Index(_ context.Context, app *models.Application) error {
	r.ids = append(r.ids, app.ID)
	return r.err
}

func newReconciler(t *testing.T) (*Reconciler, *storetest.Memory, *recordingIndexer) {
	t.Helper()
	mem := seededMeetings()
	idx := &recordingIndexer{}
	r := NewReconciler(mem, NewStoreMeetingResolver(mem.Meetings()), idx, logger.NewTestLogger(t))
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r, mem, idx
}

func row(passport string) records.Row {
	return records.Row{
		records.ColApplicationDate:        "2025-01-15",
		records.ColMeetingName:            "Annual Assembly 2025",
		records.ColFirstName:              "Ada",
		records.ColLastName:               "Okafor",
		records.ColEmail:                  "ada@example.org",
		records.ColPassportNumber:         `="` + passport + `"`,
		records.ColDateOfArrival:          "2025-05-30",
		records.ColDateOfDeparture:        "2025-06-05",
		records.ColPassportExpirationDate: "2030-01-01",
		records.ColStatus:                 "Approved",
	}
}

func TestImport_InsertsNewRecord(t *testing.T) {
	r, mem, idx := newReconciler(t)

	summary, err := r.Import(context.Background(), []records.Row{row("0012345")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 0, summary.Updated)
	assert.Empty(t, summary.Errors)

	app, err := mem.Applications().FindByPassportAndMeeting(context.Background(), "0012345", "m-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), app.CreatedAt)
	assert.Equal(t, models.StatusApproved, app.Status)
	assert.True(t, app.IsImported)
	assert.Equal(t, "admin-1", app.ImportedBy)
	assert.Equal(t, "admin-1", app.UserID)
	assert.Equal(t, []string{app.ID}, idx.ids)
	assert.Equal(t, []string{"0012345|m-1"}, mem.Locks())
}

func TestImport_StatusDefaultsToPending(t *testing.T) {
	r, mem, _ := newReconciler(t)
	in := row("P-1")
	in[records.ColStatus] = "waiting"

	_, err := r.Import(context.Background(), []records.Row{in}, admin)
	require.NoError(t, err)

	app, err := mem.Applications().FindByPassportAndMeeting(context.Background(), "P-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
}

func TestImport_SameRowTwiceInsertsThenUpdates(t *testing.T) {
	r, mem, _ := newReconciler(t)

	first, err := r.Import(context.Background(), []records.Row{row("0012345")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Updated)

	changed := row("0012345")
	changed[records.ColEmail] = "ada.okafor@example.org"
	changed[records.ColApplicationDate] = "2025-02-20"
	second, err := r.Import(context.Background(), []records.Row{changed}, admin)
	require.NoError(t, err)

	assert.Equal(t, 1, second.Successful)
	assert.Equal(t, 1, second.Updated)
	require.Len(t, second.UpdatedRecords, 1)
	assert.Equal(t, "Ada Okafor", second.UpdatedRecords[0].Name)
	assert.Equal(t, "0012345", second.UpdatedRecords[0].PassportNumber)
	assert.Equal(t, 1, mem.CountApplications())

	app, err := mem.Applications().GetByID(context.Background(), second.UpdatedRecords[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ada.okafor@example.org", app.Email)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), app.CreatedAt, "creation time is preserved on update")
}

func TestImport_UpdatePreservesOwner(t *testing.T) {
	r, mem, _ := newReconciler(t)
	mem.AddApplication(models.Application{
		ID:             "existing",
		UserID:         "applicant-9",
		MeetingID:      "m-1",
		PassportNumber: "0012345",
		Status:         models.StatusPending,
		CreatedAt:      time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	})

	summary, err := r.Import(context.Background(), []records.Row{row("0012345")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	app, err := mem.Applications().GetByID(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "applicant-9", app.UserID)
	assert.Equal(t, models.StatusApproved, app.Status)
	assert.True(t, app.IsImported)
	assert.Equal(t, "admin-1", app.LastUpdatedBy)
}

func TestImport_RowFailuresAreIsolated(t *testing.T) {
	r, mem, _ := newReconciler(t)

	missing := row("A-2")
	delete(missing, records.ColEmail)

	unknownMeeting := row("A-3")
	unknownMeeting[records.ColMeetingName] = "Nonexistent 2099"

	badDates := row("A-4")
	badDates[records.ColPassportExpirationDate] = "2025-06-04"

	nameless := row("A-5")
	nameless[records.ColFirstName] = ""
	nameless[records.ColLastName] = ""

	summary, err := r.Import(context.Background(),
		[]records.Row{row("A-1"), missing, unknownMeeting, badDates, nameless, row("A-6")}, admin)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 4, summary.Failed)
	assert.Equal(t, 2, mem.CountApplications())

	require.Len(t, summary.Errors, 4)
	assert.Equal(t, RowError{Row: 2, Name: "Ada Okafor", Error: "missing fields: [email]"}, summary.Errors[0])
	assert.Equal(t, 3, summary.Errors[1].Row)
	assert.Contains(t, summary.Errors[1].Error, "Meeting not found: Nonexistent 2099")
	assert.Equal(t, 4, summary.Errors[2].Row)
	assert.Contains(t, summary.Errors[2].Error, "passport expiration date must be on or after the departure date")
	assert.Equal(t, RowError{Row: 5, Name: "Unknown", Error: "missing fields: [firstName, lastName]"}, summary.Errors[3])
}

func TestImport_BlankTextEscapedPassportIsMissing(t *testing.T) {
	r, mem, _ := newReconciler(t)

	first := row("")
	second := row(" ")
	second[records.ColFirstName] = "Bob"
	second[records.ColLastName] = "Stranger"
	second[records.ColEmail] = "bob@example.org"

	summary, err := r.Import(context.Background(), []records.Row{first, second}, admin)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, mem.CountApplications())
	assert.Equal(t, []RowError{
		{Row: 1, Name: "Ada Okafor", Error: "missing fields: [passportNumber]"},
		{Row: 2, Name: "Bob Stranger", Error: "missing fields: [passportNumber]"},
	}, summary.Errors)
}

func TestImport_RowNumbersFollowTheFileAcrossBlankLines(t *testing.T) {
	r, _, _ := newReconciler(t)
	header := "applicationDate,meetingName,firstName,lastName,email,passportNumber,dateOfArrival,dateOfDeparture\n"
	data := header +
		"2025-01-15,Annual Assembly 2025,Ada,Okafor,ada@example.org,P-1,2025-05-30,2025-06-05\n" +
		"\n" +
		",,,,,,,\n" +
		"2025-01-15,Nonexistent 2099,Bo,Chen,bo@example.org,P-2,2025-05-30,2025-06-05\n"

	rows, err := DecodeCSV([]byte(data))
	require.NoError(t, err)

	summary, err := r.Import(context.Background(), rows, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 4, summary.Errors[0].Row)
	assert.Equal(t, "Bo Chen", summary.Errors[0].Name)
}

func TestImport_InvalidApplicationDateFailsRow(t *testing.T) {
	r, _, _ := newReconciler(t)
	in := row("X")
	in[records.ColApplicationDate] = "not a date"

	summary, err := r.Import(context.Background(), []records.Row{in}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Errors[0].Error, "invalid applicationDate")
}

func TestImport_IndexFailureDoesNotFailRow(t *testing.T) {
	r, _, idx := newReconciler(t)
	idx.err = errors.New("cluster red")

	summary, err := r.Import(context.Background(), []records.Row{row("1")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Empty(t, summary.Errors)
}

func TestImport_StoreFailureIsRowError(t *testing.T) {
	r, mem, _ := newReconciler(t)
	mem.CreateErr = errors.New("disk full")

	summary, err := r.Import(context.Background(), []records.Row{row("1")}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Errors[0].Error, "disk full")
}

func TestImport_CancelledContextStopsBatch(t *testing.T) {
	r, _, _ := newReconciler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Import(ctx, []records.Row{row("1")}, admin)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Successful)
}

func TestExportThenReimport_UpdatesEveryRecord(t *testing.T) {
	r, mem, _ := newReconciler(t)
	_, err := r.Import(context.Background(), []records.Row{row("0012345"), row("0099"), row("7")}, admin)
	require.NoError(t, err)
	require.Equal(t, 3, mem.CountApplications())

	exp := exporter.New(mem.Applications(), mem.Meetings(), logger.NewTestLogger(t))
	file, err := exp.Export(context.Background(), "m-1", exporter.FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), `"=""0012345"""`)

	rows, err := DecodeCSV(file.Data)
	require.NoError(t, err)
	summary, err := r.Import(context.Background(), rows, admin)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 3, summary.Updated)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 3, mem.CountApplications())
}

func TestExportThenReimport_XLSX(t *testing.T) {
	r, mem, _ := newReconciler(t)
	_, err := r.Import(context.Background(), []records.Row{row("0012345")}, admin)
	require.NoError(t, err)

	exp := exporter.New(mem.Applications(), mem.Meetings(), logger.NewTestLogger(t))
	file, err := exp.Export(context.Background(), "m-1", exporter.FormatXLSX)
	require.NoError(t, err)

	rows, err := DecodeXLSX(bytes.NewReader(file.Data))
	require.NoError(t, err)
	summary, err := r.Import(context.Background(), rows, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, mem.CountApplications())
}
