package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/models"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func sampleApplication() *models.Application {
	created := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	expiry := time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)
	return &models.Application{
		ID:                     "5f8d7c1e-0000-4000-8000-000000000001",
		UserID:                 "user-1",
		MeetingID:              "meeting-1",
		FirstName:              "Lena",
		LastName:               "Marsh",
		Email:                  "lena@example.org",
		PassportNumber:         "0012345",
		PassportExpirationDate: &expiry,
		Status:                 models.StatusApproved,
		CreatedAt:              created,
		UpdatedAt:              created,
	}
}

func applicationRow(apps ...*models.Application) *sqlmock.Rows {
	rows := sqlmock.NewRows(applicationColumns)
	for _, app := range apps {
		vals := applicationValues(app)
		cells := make([]driver.Value, len(applicationColumns))
		for i, col := range applicationColumns {
			cells[i] = vals[col]
		}
		rows.AddRow(cells...)
	}
	return rows
}

// ==========================
// Applications
// ==========================

func TestGetByID_Found(t *testing.T) {
	s, mock := newMock(t)
	app := sampleApplication()

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
		WithArgs(app.ID).
		WillReturnRows(applicationRow(app))

	got, err := s.Applications().GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(applicationColumns))

	_, err := s.Applications().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPassportAndMeeting_UsesReconciliationKey(t *testing.T) {
	s, mock := newMock(t)
	app := sampleApplication()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE passport_number = $1 AND meeting_id = $2 ORDER BY created_at ASC LIMIT 1")).
		WithArgs("0012345", "meeting-1").
		WillReturnRows(applicationRow(app))

	got, err := s.Applications().FindByPassportAndMeeting(context.Background(), "0012345", "meeting-1")
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByMeeting_NewestFirst(t *testing.T) {
	s, mock := newMock(t)
	older := sampleApplication()
	newer := sampleApplication()
	newer.ID = "5f8d7c1e-0000-4000-8000-000000000002"
	newer.CreatedAt = older.CreatedAt.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE meeting_id = $1 ORDER BY created_at DESC")).
		WithArgs("meeting-1").
		WillReturnRows(applicationRow(newer, older))

	got, err := s.Applications().ListByMeeting(context.Background(), "meeting-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InsertsEveryColumn(t *testing.T) {
	s, mock := newMock(t)
	app := sampleApplication()

	args := make([]driver.Value, len(applicationColumns))
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[0] = app.ID
	args[8] = "0012345"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications (id, user_id, meeting_id")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Applications().Create(context.Background(), app))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NoRowsIsNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET first_name = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Applications().Update(context.Background(), sampleApplication())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatement_SkipsImmutableColumns(t *testing.T) {
	assert.NotContains(t, updateApplication, "created_at =")
	assert.NotContains(t, updateApplication, "user_id =")
	assert.Contains(t, updateApplication, "updated_at = $")
	assert.Contains(t, updateApplication, "WHERE id = $1")
}

func TestMarkLetterGenerated(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("SET pdf_generated = TRUE")).
		WithArgs("app-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Applications().MarkLetterGenerated(context.Background(), "app-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Applications().Delete(context.Background(), "gone"), ErrNotFound)
}

// ==========================
// Meetings
// ==========================

func TestMeetingGetByName_ExactMatch(t *testing.T) {
	s, mock := newMock(t)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE name = $1")).
		WithArgs("Annual Assembly 2025").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "location", "active", "created_at"}).
			AddRow("m1", "Annual Assembly 2025", start, start.AddDate(0, 0, 3), "Nairobi, Kenya", true, start))

	m, err := s.Meetings().GetByName(context.Background(), "Annual Assembly 2025")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "Nairobi, Kenya", m.Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingGetByName_Missing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE name = $1")).
		WithArgs("annual assembly 2025").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "location", "active", "created_at"}))

	_, err := s.Meetings().GetByName(context.Background(), "annual assembly 2025")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMeetingList_ActiveOnly(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM meetings WHERE active = TRUE ORDER BY start_date DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "location", "active", "created_at"}))

	got, err := s.Meetings().List(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Transactions and audit
// ==========================

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("0012345|meeting-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE passport_number = $1 AND meeting_id = $2")).
		WithArgs("0012345", "meeting-1").
		WillReturnRows(sqlmock.NewRows(applicationColumns))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx TxStores) error {
		if err := tx.LockKey(context.Background(), "0012345|meeting-1"); err != nil {
			return err
		}
		_, err := tx.Applications().FindByPassportAndMeeting(context.Background(), "0012345", "meeting-1")
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx TxStores) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecord(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WithArgs(models.AuditStatusChanged, "application", "app-1", "admin-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Audit().Record(context.Background(), models.AuditEntry{
		Action:   models.AuditStatusChanged,
		EntityID: "app-1",
		ActorID:  "admin-1",
		Details:  map[string]interface{}{"status": "Approved"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
