package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store"
	"visa-portal/internal/store/storetest"
)

func seeded(t *testing.T) (*Exporter, *storetest.Memory) {
	t.Helper()
	mem := storetest.NewMemory()
	mem.AddMeeting(models.Meeting{ID: "m-1", Name: "Annual Assembly: 2025/Q2", Active: true})
	mem.AddMeeting(models.Meeting{ID: "m-empty", Name: "Empty"})

	arrival := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mem.AddApplication(models.Application{
		ID: "older", MeetingID: "m-1", FirstName: "Ada", LastName: "Okafor",
		PassportNumber: "0012345", Phone: "+1 555 0100", CompanyName: `Okafor, "Sons" & Co`,
		DateOfArrival: &arrival, Status: models.StatusApproved, LetterMailed: true,
		CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	mem.AddApplication(models.Application{
		ID: "newer", MeetingID: "m-1", FirstName: "Bo", LastName: "Chen",
		PassportNumber: "E77", Status: models.StatusPending,
		CreatedAt: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
	})

	e := New(mem.Applications(), mem.Meetings(), logger.NewTestLogger(t))
	e.now = func() time.Time { return time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC) }
	return e, mem
}

func TestExport_CSV(t *testing.T) {
	e, _ := seeded(t)

	file, err := e.Export(context.Background(), "m-1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "annual_assembly__2025_q2_applications_2025-03-04.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 2, file.Count)

	lines, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, records.Columns, lines[0])

	newest := records.NewRow(lines[0], lines[1])
	assert.Equal(t, "Bo", newest.Get(records.ColFirstName), "newest first")
	assert.Equal(t, "", newest.Get(records.ColPhone), "empty text column is not escaped")

	oldest := records.NewRow(lines[0], lines[2])
	assert.Equal(t, "2025-01-10", oldest.Get(records.ColApplicationDate))
	assert.Equal(t, "Annual Assembly: 2025/Q2", oldest.Get(records.ColMeetingName))
	assert.Equal(t, `="0012345"`, oldest.Get(records.ColPassportNumber))
	assert.Equal(t, `="+1 555 0100"`, oldest.Get(records.ColPhone))
	assert.Equal(t, `Okafor, "Sons" & Co`, oldest.Get(records.ColCompanyName))
	assert.Equal(t, "2025-06-01", oldest.Get(records.ColDateOfArrival))
	assert.Equal(t, "", oldest.Get(records.ColDateOfDeparture))
	assert.Equal(t, "true", oldest.Get(records.ColLetterMailed))
	assert.Equal(t, "Approved", oldest.Get(records.ColStatus))

	assert.Contains(t, string(file.Data), `"Okafor, ""Sons"" & Co"`)
}

func TestExport_XLSX(t *testing.T) {
	e, _ := seeded(t)

	file, err := e.Export(context.Background(), "m-1", FormatXLSX)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, records.ColApplicationDate, rows[0][0])
	passport, err := f.GetCellValue(SheetName, "H3")
	require.NoError(t, err)
	assert.Equal(t, "0012345", passport)
}

func TestExport_NoRecords(t *testing.T) {
	e, _ := seeded(t)
	_, err := e.Export(context.Background(), "m-empty", FormatCSV)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestExport_UnknownMeeting(t *testing.T) {
	e, _ := seeded(t)
	_, err := e.Export(context.Background(), "nope", FormatCSV)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExcelEscapeSymmetry(t *testing.T) {
	for _, v := range []string{"0012345", "+44 (0)20 7946 0000", "1.5E+10", "A-00/7"} {
		assert.Equal(t, v, records.CleanValue(records.FormatAsText(v)))
	}
}
