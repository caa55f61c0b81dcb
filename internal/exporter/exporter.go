// Package exporter renders a meeting's applications in the import column
// layout, so an export can be edited and uploaded again.
package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
	"visa-portal/internal/records"
	"visa-portal/internal/store"
)

var (
	ErrNoRecords     = errors.New("no applications found for meeting")
	ErrUnknownFormat = errors.New("unknown export format")
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	SheetName = "Applications"
)

// ParseFormat defaults an empty value to CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// File is a rendered export ready to be sent as an attachment.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

type Exporter struct {
	apps     store.ApplicationStore
	meetings store.MeetingStore
	logger   logger.Logger
	now      func() time.Time
}

func New(apps store.ApplicationStore, meetings store.MeetingStore, log logger.Logger) *Exporter {
	return &Exporter{
		apps:     apps,
		meetings: meetings,
		logger:   log.WithFields(map[string]interface{}{"component": "exporter"}),
		now:      time.Now,
	}
}

// Export returns every application of the meeting, newest first. A meeting
// without applications is ErrNoRecords rather than an empty file.
func (e *Exporter) Export(ctx context.Context, meetingID string, format Format) (*File, error) {
	meeting, err := e.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}

	apps, err := e.apps.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if len(apps) == 0 {
		return nil, ErrNoRecords
	}

	rows := Rows(apps, meeting)
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, rows)
	case FormatXLSX:
		err = WriteXLSX(&buf, rows)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	metrics.Exports.WithLabelValues(string(format)).Inc()
	e.logger.Info("meeting exported", map[string]interface{}{
		"meetingId": meetingID,
		"format":    string(format),
		"count":     len(apps),
	})

	return &File{
		Filename:    Filename(meeting.Name, format, e.now()),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
		Count:       len(apps),
	}, nil
}

func Rows(apps []*models.Application, meeting *models.Meeting) []records.Row {
	rows := make([]records.Row, len(apps))
	for i, app := range apps {
		rows[i] = records.Encode(app, meeting.Name)
	}
	return rows
}

// WriteCSV writes the header and rows. Text columns get the ="..." escape so
// spreadsheets keep leading zeros; records.CleanValue undoes it on import.
func WriteCSV(w io.Writer, rows []records.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(records.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		values := row.Values()
		for i, col := range records.Columns {
			if records.TextColumns[col] {
				values[i] = records.FormatAsText(values[i])
			}
		}
		if err := cw.Write(values); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes string cells, which spreadsheets already treat as text,
// so no formula escape is applied.
func WriteXLSX(w io.Writer, rows []records.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := append([]string(nil), records.Columns...)
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.Values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename is <meeting name>_applications_<date>.<ext> with every
// non-alphanumeric character of the name replaced by an underscore.
func Filename(meetingName string, format Format, now time.Time) string {
	base := strings.ToLower(nonAlnum.ReplaceAllString(meetingName, "_"))
	return fmt.Sprintf("%s_applications_%s.%s", base, now.Format(models.DateLayout), format)
}
