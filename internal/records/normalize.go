package records

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"visa-portal/internal/models"
)

var ErrInvalidApplicationDate = errors.New("invalid applicationDate")

// MissingFieldsError lists required columns that were absent or blank, in
// RequiredColumns order.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing fields: [%s]", strings.Join(e.Fields, ", "))
}

// Draft is a row after normalization. Required columns are plain values,
// optional dates are nil when absent or unparsable.
type Draft struct {
	ApplicationDate time.Time
	MeetingName     string

	FirstName string
	LastName  string
	Email     string
	BirthDate *time.Time
	Gender    string

	PassportNumber         string
	PassportIssuingCountry string
	PassportExpirationDate *time.Time

	DateOfArrival   *time.Time
	DateOfDeparture *time.Time

	CompanyName  string
	Position     string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string

	Phone             string
	Fax               string
	HotelName         string
	HotelConfirmation string

	Status             models.Status
	LetterMailed       bool
	LetterMailedDate   *time.Time
	HardCopyMailed     bool
	HardCopyMailedDate *time.Time
}

// Normalize validates a raw row and converts it into a Draft.
func Normalize(row Row) (*Draft, error) {
	var missing []string
	for _, col := range RequiredColumns {
		if row.Value(col) == "" {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	applied := ParseDate(row.Get(ColApplicationDate))
	if applied == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidApplicationDate, row.Get(ColApplicationDate))
	}

	return &Draft{
		ApplicationDate: *applied,
		MeetingName:     row.Get(ColMeetingName),

		FirstName: row.Get(ColFirstName),
		LastName:  row.Get(ColLastName),
		Email:     row.Get(ColEmail),
		BirthDate: ParseDate(row.Get(ColBirthDate)),
		Gender:    row.Get(ColGender),

		PassportNumber:         row.Value(ColPassportNumber),
		PassportIssuingCountry: row.Get(ColPassportIssuingCountry),
		PassportExpirationDate: ParseDate(row.Get(ColPassportExpirationDate)),

		DateOfArrival:   ParseDate(row.Get(ColDateOfArrival)),
		DateOfDeparture: ParseDate(row.Get(ColDateOfDeparture)),

		CompanyName:  row.Get(ColCompanyName),
		Position:     row.Get(ColPosition),
		AddressLine1: row.Get(ColAddressLine1),
		AddressLine2: row.Get(ColAddressLine2),
		City:         row.Get(ColCity),
		State:        row.Get(ColState),
		PostalCode:   row.Get(ColPostalCode),
		Country:      row.Get(ColCountry),

		Phone:             row.Value(ColPhone),
		Fax:               row.Value(ColFax),
		HotelName:         row.Get(ColHotelName),
		HotelConfirmation: row.Value(ColHotelConfirmation),

		Status:             models.ParseStatus(row.Get(ColStatus)),
		LetterMailed:       ParseBool(row[ColLetterMailed]),
		LetterMailedDate:   ParseDate(row.Get(ColLetterMailedDate)),
		HardCopyMailed:     ParseBool(row[ColHardCopyMailed]),
		HardCopyMailedDate: ParseDate(row.Get(ColHardCopyMailedDate)),
	}, nil
}

// Apply overwrites every field of app that an import is allowed to change.
// Identity, owner, meeting and timestamps are left to the caller.
func (d *Draft) Apply(app *models.Application) {
	app.FirstName = d.FirstName
	app.LastName = d.LastName
	app.Email = d.Email
	app.BirthDate = d.BirthDate
	app.Gender = d.Gender
	app.PassportNumber = d.PassportNumber
	app.PassportIssuingCountry = d.PassportIssuingCountry
	app.PassportExpirationDate = d.PassportExpirationDate
	app.DateOfArrival = d.DateOfArrival
	app.DateOfDeparture = d.DateOfDeparture
	app.CompanyName = d.CompanyName
	app.Position = d.Position
	app.AddressLine1 = d.AddressLine1
	app.AddressLine2 = d.AddressLine2
	app.City = d.City
	app.State = d.State
	app.PostalCode = d.PostalCode
	app.Country = d.Country
	app.Phone = d.Phone
	app.Fax = d.Fax
	app.HotelName = d.HotelName
	app.HotelConfirmation = d.HotelConfirmation
	app.Status = d.Status
	app.LetterMailed = d.LetterMailed
	app.LetterMailedDate = d.LetterMailedDate
	app.HardCopyMailed = d.HardCopyMailed
	app.HardCopyMailedDate = d.HardCopyMailedDate
}

// Encode is the inverse of Normalize: it renders a stored application as a
// row. Values are raw; spreadsheet escaping is left to the writer.
func Encode(app *models.Application, meetingName string) Row {
	created := app.CreatedAt
	return Row{
		ColApplicationDate:        FormatDate(&created),
		ColMeetingName:            meetingName,
		ColFirstName:              app.FirstName,
		ColLastName:               app.LastName,
		ColEmail:                  app.Email,
		ColBirthDate:              FormatDate(app.BirthDate),
		ColGender:                 app.Gender,
		ColPassportNumber:         app.PassportNumber,
		ColPassportIssuingCountry: app.PassportIssuingCountry,
		ColPassportExpirationDate: FormatDate(app.PassportExpirationDate),
		ColDateOfArrival:          FormatDate(app.DateOfArrival),
		ColDateOfDeparture:        FormatDate(app.DateOfDeparture),
		ColCompanyName:            app.CompanyName,
		ColPosition:               app.Position,
		ColAddressLine1:           app.AddressLine1,
		ColAddressLine2:           app.AddressLine2,
		ColCity:                   app.City,
		ColState:                  app.State,
		ColPostalCode:             app.PostalCode,
		ColCountry:                app.Country,
		ColPhone:                  app.Phone,
		ColFax:                    app.Fax,
		ColHotelName:              app.HotelName,
		ColHotelConfirmation:      app.HotelConfirmation,
		ColStatus:                 string(app.Status),
		ColLetterMailed:           FormatBool(app.LetterMailed),
		ColLetterMailedDate:       FormatDate(app.LetterMailedDate),
		ColHardCopyMailed:         FormatBool(app.HardCopyMailed),
		ColHardCopyMailedDate:     FormatDate(app.HardCopyMailedDate),
	}
}

// Values returns r's cells in Columns order.
func (r Row) Values() []string {
	out := make([]string, len(Columns))
	for i, col := range Columns {
		out[i] = r[col]
	}
	return out
}
