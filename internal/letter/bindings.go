package letter

import (
	"strings"
	"time"

	"visa-portal/internal/models"
)

// LetterDateLayout is how dates are printed in the letter body.
const LetterDateLayout = "January 2, 2006"

// Source is everything a field value may be derived from.
type Source struct {
	App              *models.Application
	Meeting          *models.Meeting
	Now              time.Time
	FallbackLocation string
}

// FieldBinding maps one template form field to its value.
type FieldBinding struct {
	Name  string
	Value func(s Source) string
}

// Bindings is the template contract. Adding a field to the letter means
// adding a row here.
var Bindings = []FieldBinding{
	{"firstName", func(s Source) string { return s.App.FirstName }},
	{"lastName", func(s Source) string { return s.App.LastName }},
	{"email", func(s Source) string { return s.App.Email }},
	{"birthDate", func(s Source) string { return letterDate(s.App.BirthDate) }},
	{"gender", func(s Source) string { return s.App.Gender }},
	{"companyName", func(s Source) string { return s.App.CompanyName }},
	{"position", func(s Source) string { return s.App.Position }},
	{"city", func(s Source) string { return s.App.City }},
	{"postalCode", func(s Source) string { return s.App.PostalCode }},
	{"country", func(s Source) string { return s.App.Country }},
	{"phone", func(s Source) string { return s.App.Phone }},
	{"fax", func(s Source) string { return s.App.Fax }},
	{"hotelName", func(s Source) string { return s.App.HotelName }},
	{"hotelConfirmation", func(s Source) string { return s.App.HotelConfirmation }},

	{"fullName", fullName},
	{"passportInfo", func(s Source) string {
		return join(" / ", s.App.PassportNumber, s.App.PassportIssuingCountry, letterDate(s.App.PassportExpirationDate))
	}},
	{"address", func(s Source) string { return join(", ", s.App.AddressLine1, s.App.AddressLine2) }},
	{"travelDates", func(s Source) string {
		return join(" / ", letterDate(s.App.DateOfArrival), letterDate(s.App.DateOfDeparture))
	}},
	{"meetingInfo", meetingInfo},
	{"todayDate", func(s Source) string { return s.Now.Format(LetterDateLayout) }},
}

// BindingNames lists the field names in table order.
func BindingNames() []string {
	names := make([]string, len(Bindings))
	for i, b := range Bindings {
		names[i] = b.Name
	}
	return names
}

func fullName(s Source) string {
	name := join(" ", s.App.FirstName, s.App.LastName)
	if name == "" {
		return ""
	}
	return name + ","
}

func meetingInfo(s Source) string {
	if s.Meeting == nil {
		return ""
	}
	location := strings.TrimSpace(s.Meeting.Location)
	if location == "" {
		location = s.FallbackLocation
	}
	info := join(", held in ", s.Meeting.Name, location)
	dates := join(" - ", letterDate(&s.Meeting.StartDate), letterDate(&s.Meeting.EndDate))
	if dates == "" {
		return info
	}
	return info + " on " + dates
}

func letterDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(LetterDateLayout)
}

// join drops blank parts before joining.
func join(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// FieldReport compares a template's form fields with Bindings.
type FieldReport struct {
	Bound []string `json:"bound"`
	// Unbound fields exist in the template but are never filled.
	Unbound []string `json:"unbound"`
	// Missing bindings have no matching field and are silently skipped.
	Missing []string `json:"missing"`
}

func (r FieldReport) Complete() bool {
	return len(r.Unbound) == 0 && len(r.Missing) == 0
}

func CompareFields(templateFields []string) FieldReport {
	report := FieldReport{Bound: []string{}, Unbound: []string{}, Missing: []string{}}
	inTemplate := make(map[string]bool, len(templateFields))
	for _, f := range templateFields {
		inTemplate[f] = true
	}
	known := make(map[string]bool, len(Bindings))
	for _, b := range Bindings {
		known[b.Name] = true
		if inTemplate[b.Name] {
			report.Bound = append(report.Bound, b.Name)
		} else {
			report.Missing = append(report.Missing, b.Name)
		}
	}
	for _, f := range templateFields {
		if !known[f] {
			report.Unbound = append(report.Unbound, f)
		}
	}
	return report
}
