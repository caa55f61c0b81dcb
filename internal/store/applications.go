package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"visa-portal/internal/models"
)

var applicationColumns = []string{
	"id", "user_id", "meeting_id",
	"first_name", "last_name", "email", "birth_date", "gender",
	"passport_number", "passport_issuing_country", "passport_expiration_date",
	"date_of_arrival", "date_of_departure",
	"company_name", "position", "address_line1", "address_line2",
	"city", "state", "postal_code", "country",
	"phone", "fax", "hotel_name", "hotel_confirmation",
	"status", "letter_mailed", "letter_mailed_date", "hard_copy_mailed", "hard_copy_mailed_date",
	"is_imported", "imported_by", "last_updated_by", "pdf_generated", "pdf_generated_at",
	"created_at", "updated_at",
}

// immutableColumns are never touched by Update.
var immutableColumns = map[string]bool{
	"id": true, "user_id": true, "meeting_id": true, "created_at": true,
}

var (
	selectApplication = "SELECT " + strings.Join(applicationColumns, ", ") + " FROM applications"
	insertApplication = buildInsert()
	updateApplication = buildUpdate()
)

func buildInsert() string {
	placeholders := make([]string, len(applicationColumns))
	for i := range applicationColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO applications (%s) VALUES (%s)",
		strings.Join(applicationColumns, ", "), strings.Join(placeholders, ", "))
}

func buildUpdate() string {
	var sets []string
	n := 2
	for _, col := range applicationColumns {
		if immutableColumns[col] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
		n++
	}
	return "UPDATE applications SET " + strings.Join(sets, ", ") + " WHERE id = $1"
}

func applicationValues(a *models.Application) map[string]interface{} {
	return map[string]interface{}{
		"id":                       a.ID,
		"user_id":                  a.UserID,
		"meeting_id":               a.MeetingID,
		"first_name":               a.FirstName,
		"last_name":                a.LastName,
		"email":                    a.Email,
		"birth_date":               nullTime(a.BirthDate),
		"gender":                   a.Gender,
		"passport_number":          a.PassportNumber,
		"passport_issuing_country": a.PassportIssuingCountry,
		"passport_expiration_date": nullTime(a.PassportExpirationDate),
		"date_of_arrival":          nullTime(a.DateOfArrival),
		"date_of_departure":        nullTime(a.DateOfDeparture),
		"company_name":             a.CompanyName,
		"position":                 a.Position,
		"address_line1":            a.AddressLine1,
		"address_line2":            a.AddressLine2,
		"city":                     a.City,
		"state":                    a.State,
		"postal_code":              a.PostalCode,
		"country":                  a.Country,
		"phone":                    a.Phone,
		"fax":                      a.Fax,
		"hotel_name":               a.HotelName,
		"hotel_confirmation":       a.HotelConfirmation,
		"status":                   string(a.Status),
		"letter_mailed":            a.LetterMailed,
		"letter_mailed_date":       nullTime(a.LetterMailedDate),
		"hard_copy_mailed":         a.HardCopyMailed,
		"hard_copy_mailed_date":    nullTime(a.HardCopyMailedDate),
		"is_imported":              a.IsImported,
		"imported_by":              a.ImportedBy,
		"last_updated_by":          a.LastUpdatedBy,
		"pdf_generated":            a.PDFGenerated,
		"pdf_generated_at":         nullTime(a.PDFGeneratedAt),
		"created_at":               a.CreatedAt.UTC(),
		"updated_at":               a.UpdatedAt.UTC(),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(sc rowScanner) (*models.Application, error) {
	var a models.Application
	var status string
	var birth, expiry, arrival, departure sql.NullTime
	var letterMailed, hardCopyMailed, pdfAt sql.NullTime
	err := sc.Scan(
		&a.ID, &a.UserID, &a.MeetingID,
		&a.FirstName, &a.LastName, &a.Email, &birth, &a.Gender,
		&a.PassportNumber, &a.PassportIssuingCountry, &expiry,
		&arrival, &departure,
		&a.CompanyName, &a.Position, &a.AddressLine1, &a.AddressLine2,
		&a.City, &a.State, &a.PostalCode, &a.Country,
		&a.Phone, &a.Fax, &a.HotelName, &a.HotelConfirmation,
		&status, &a.LetterMailed, &letterMailed, &a.HardCopyMailed, &hardCopyMailed,
		&a.IsImported, &a.ImportedBy, &a.LastUpdatedBy, &a.PDFGenerated, &pdfAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = models.ParseStatus(status)
	a.BirthDate = timePtr(birth)
	a.PassportExpirationDate = timePtr(expiry)
	a.DateOfArrival = timePtr(arrival)
	a.DateOfDeparture = timePtr(departure)
	a.LetterMailedDate = timePtr(letterMailed)
	a.HardCopyMailedDate = timePtr(hardCopyMailed)
	a.PDFGeneratedAt = timePtr(pdfAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

type applicationStore struct {
	q DBTX
}

func (s *applicationStore) getOne(ctx context.Context, query string, args ...interface{}) (*models.Application, error) {
	app, err := scanApplication(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query application: %w", err)
	}
	return app, nil
}

func (s *applicationStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	return s.getOne(ctx, selectApplication+" WHERE id = $1", id)
}

// FindByPassportAndMeeting returns the oldest record for the key; legacy data
// may hold more than one.
func (s *applicationStore) FindByPassportAndMeeting(ctx context.Context, passportNumber, meetingID string) (*models.Application, error) {
	return s.getOne(ctx,
		selectApplication+" WHERE passport_number = $1 AND meeting_id = $2 ORDER BY created_at ASC LIMIT 1",
		passportNumber, meetingID)
}

func (s *applicationStore) ListByMeeting(ctx context.Context, meetingID string) ([]*models.Application, error) {
	return s.list(ctx, selectApplication+" WHERE meeting_id = $1 ORDER BY created_at DESC", meetingID)
}

func (s *applicationStore) ListByOwner(ctx context.Context, userID string) ([]*models.Application, error) {
	return s.list(ctx, selectApplication+" WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (s *applicationStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Application, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *applicationStore) Create(ctx context.Context, app *models.Application) error {
	vals := applicationValues(app)
	args := make([]interface{}, len(applicationColumns))
	for i, col := range applicationColumns {
		args[i] = vals[col]
	}
	if _, err := s.q.ExecContext(ctx, insertApplication, args...); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *applicationStore) Update(ctx context.Context, app *models.Application) error {
	vals := applicationValues(app)
	args := []interface{}{app.ID}
	for _, col := range applicationColumns {
		if !immutableColumns[col] {
			args = append(args, vals[col])
		}
	}
	res, err := s.q.ExecContext(ctx, updateApplication, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return expectOne(res)
}

func (s *applicationStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return expectOne(res)
}

func (s *applicationStore) MarkLetterGenerated(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE applications SET pdf_generated = TRUE, pdf_generated_at = $2, updated_at = $2 WHERE id = $1`,
		id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark letter generated: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
