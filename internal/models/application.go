package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the review state of a visa letter request.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus maps free-text and legacy status values onto the canonical enum.
// "Complete" predates the Approved state and is treated as a synonym.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "complete", "completed":
		return StatusApproved
	case "rejected", "denied":
		return StatusRejected
	default:
		return StatusPending
	}
}

// Valid reports whether s is one of the canonical values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrExpirationBeforeDeparture = errors.New("passport expiration date must be on or after the departure date")
	ErrDepartureBeforeArrival    = errors.New("departure date must be on or after the arrival date")
)

// Application is a visa letter request for one meeting.
type Application struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	MeetingID string `json:"meetingId"`

	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Gender    string     `json:"gender,omitempty"`

	PassportNumber         string     `json:"passportNumber"`
	PassportIssuingCountry string     `json:"passportIssuingCountry,omitempty"`
	PassportExpirationDate *time.Time `json:"passportExpirationDate,omitempty"`

	DateOfArrival   *time.Time `json:"dateOfArrival,omitempty"`
	DateOfDeparture *time.Time `json:"dateOfDeparture,omitempty"`

	CompanyName  string `json:"companyName,omitempty"`
	Position     string `json:"position,omitempty"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	Country      string `json:"country,omitempty"`

	Phone string `json:"phone,omitempty"`
	Fax   string `json:"fax,omitempty"`

	HotelName         string `json:"hotelName,omitempty"`
	HotelConfirmation string `json:"hotelConfirmation,omitempty"`

	Status             Status     `json:"status"`
	LetterMailed       bool       `json:"letterMailed"`
	LetterMailedDate   *time.Time `json:"letterMailedDate,omitempty"`
	HardCopyMailed     bool       `json:"hardCopyMailed"`
	HardCopyMailedDate *time.Time `json:"hardCopyMailedDate,omitempty"`
	IsImported         bool       `json:"isImported"`
	ImportedBy         string     `json:"importedBy,omitempty"`
	LastUpdatedBy      string     `json:"lastUpdatedBy,omitempty"`
	PDFGenerated       bool       `json:"pdfGenerated"`
	PDFGeneratedAt     *time.Time `json:"pdfGeneratedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName joins the applicant's names, skipping blanks.
func (a *Application) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// ValidateDates enforces arrival <= departure <= passport expiration.
// Each comparison only applies when both of its dates are present and is
// made at day granularity, so equal dates are accepted.
func (a *Application) ValidateDates() error {
	if a.DateOfArrival != nil && a.DateOfDeparture != nil &&
		Day(*a.DateOfDeparture).Before(Day(*a.DateOfArrival)) {
		return ErrDepartureBeforeArrival
	}
	if a.DateOfDeparture != nil && a.PassportExpirationDate != nil &&
		Day(*a.PassportExpirationDate).Before(Day(*a.DateOfDeparture)) {
		return fmt.Errorf("%w (expires %s, departs %s)", ErrExpirationBeforeDeparture,
			a.PassportExpirationDate.Format(DateLayout), a.DateOfDeparture.Format(DateLayout))
	}
	return nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
