// Package records converts between the tabular application format used for
// bulk import/export and models.Application.
package records

import "strings"

// Column names of the import/export contract.
const (
	ColApplicationDate        = "applicationDate"
	ColMeetingName            = "meetingName"
	ColFirstName              = "firstName"
	ColLastName               = "lastName"
	ColEmail                  = "email"
	ColBirthDate              = "birthDate"
	ColGender                 = "gender"
	ColPassportNumber         = "passportNumber"
	ColPassportIssuingCountry = "passportIssuingCountry"
	ColPassportExpirationDate = "passportExpirationDate"
	ColDateOfArrival          = "dateOfArrival"
	ColDateOfDeparture        = "dateOfDeparture"
	ColCompanyName            = "companyName"
	ColPosition               = "position"
	ColAddressLine1           = "addressLine1"
	ColAddressLine2           = "addressLine2"
	ColCity                   = "city"
	ColState                  = "state"
	ColPostalCode             = "postalCode"
	ColCountry                = "country"
	ColPhone                  = "phone"
	ColFax                    = "fax"
	ColHotelName              = "hotelName"
	ColHotelConfirmation      = "hotelConfirmation"
	ColStatus                 = "status"
	ColLetterMailed           = "letterMailed"
	ColLetterMailedDate       = "letterMailedDate"
	ColHardCopyMailed         = "hardCopyMailed"
	ColHardCopyMailedDate     = "hardCopyMailedDate"
)

// Columns is the fixed column order. Export writes it as the header row and
// import accepts any file whose header uses these names.
var Columns = []string{
	ColApplicationDate,
	ColMeetingName,
	ColFirstName,
	ColLastName,
	ColEmail,
	ColBirthDate,
	ColGender,
	ColPassportNumber,
	ColPassportIssuingCountry,
	ColPassportExpirationDate,
	ColDateOfArrival,
	ColDateOfDeparture,
	ColCompanyName,
	ColPosition,
	ColAddressLine1,
	ColAddressLine2,
	ColCity,
	ColState,
	ColPostalCode,
	ColCountry,
	ColPhone,
	ColFax,
	ColHotelName,
	ColHotelConfirmation,
	ColStatus,
	ColLetterMailed,
	ColLetterMailedDate,
	ColHardCopyMailed,
	ColHardCopyMailedDate,
}

// RequiredColumns must be present and non-blank in every imported row.
var RequiredColumns = []string{
	ColApplicationDate,
	ColMeetingName,
	ColFirstName,
	ColLastName,
	ColEmail,
	ColPassportNumber,
}

// TextColumns hold identifiers spreadsheets would otherwise reformat as numbers.
var TextColumns = map[string]bool{
	ColPassportNumber:    true,
	ColPhone:             true,
	ColFax:               true,
	ColHotelConfirmation: true,
}

// Row is one record keyed by column name.
type Row map[string]string

// Get returns the trimmed value of a column.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// Value returns the trimmed value of a column, with the spreadsheet text
// escape removed for TextColumns.
func (r Row) Value(col string) string {
	if TextColumns[col] {
		return CleanValue(r[col])
	}
	return r.Get(col)
}

// Blank reports whether the row has no non-empty value. A nil Row is blank.
func (r Row) Blank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ApplicantName is used to label row errors.
func (r Row) ApplicantName() string {
	name := strings.TrimSpace(r.Get(ColFirstName) + " " + r.Get(ColLastName))
	if name == "" {
		return "Unknown"
	}
	return name
}

// NewRow zips a header with one line of values. Missing trailing cells are
// treated as empty and extra cells are ignored.
func NewRow(header, values []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if col == "" {
			continue
		}
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	return row
}
