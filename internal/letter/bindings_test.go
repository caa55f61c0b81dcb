package letter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"visa-portal/internal/models"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func valuesOf(src Source) map[string]string {
	out := make(map[string]string, len(Bindings))
	for _, b := range Bindings {
		out[b.Name] = b.Value(src)
	}
	return out
}

func approvedApp() *models.Application {
	return &models.Application{
		ID:                     "app-1",
		FirstName:              "Lena",
		LastName:               "Marsh",
		Email:                  "lena@example.org",
		BirthDate:              day(1988, time.March, 9),
		PassportNumber:         "0012345",
		PassportIssuingCountry: "Canada",
		PassportExpirationDate: day(2031, time.May, 1),
		DateOfArrival:          day(2026, time.June, 1),
		DateOfDeparture:        day(2026, time.June, 7),
		AddressLine1:           "12 Rue Verte",
		City:                   "Lyon",
		HotelName:              "Lakeside",
		Status:                 models.StatusApproved,
	}
}

func TestBindings_ConsolidatedFields(t *testing.T) {
	v := valuesOf(Source{
		App: approvedApp(),
		Meeting: &models.Meeting{
			Name:      "Annual Assembly 2026",
			Location:  "Nairobi, Kenya",
			StartDate: *day(2026, time.June, 2),
			EndDate:   *day(2026, time.June, 5),
		},
		Now: time.Date(2026, time.April, 20, 15, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "Lena Marsh,", v["fullName"])
	assert.Equal(t, "0012345 / Canada / May 1, 2031", v["passportInfo"])
	assert.Equal(t, "12 Rue Verte", v["address"])
	assert.Equal(t, "June 1, 2026 / June 7, 2026", v["travelDates"])
	assert.Equal(t, "Annual Assembly 2026, held in Nairobi, Kenya on June 2, 2026 - June 5, 2026", v["meetingInfo"])
	assert.Equal(t, "April 20, 2026", v["todayDate"])
	assert.Equal(t, "March 9, 1988", v["birthDate"])
	assert.Equal(t, "", v["hotelConfirmation"])
}

func TestBindings_FallbackLocation(t *testing.T) {
	v := valuesOf(Source{
		App:              approvedApp(),
		Meeting:          &models.Meeting{Name: "Council", StartDate: *day(2026, 1, 5), EndDate: *day(2026, 1, 6)},
		FallbackLocation: "Geneva, Switzerland",
	})
	assert.Equal(t, "Council, held in Geneva, Switzerland on January 5, 2026 - January 6, 2026", v["meetingInfo"])
}

func TestBindings_BlankPartsAreDropped(t *testing.T) {
	app := &models.Application{PassportNumber: "X1", AddressLine2: "Suite 4"}
	v := valuesOf(Source{App: app})

	assert.Equal(t, "", v["fullName"])
	assert.Equal(t, "X1", v["passportInfo"])
	assert.Equal(t, "Suite 4", v["address"])
	assert.Equal(t, "", v["travelDates"])
	assert.Equal(t, "", v["meetingInfo"])
}

func TestBindingNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range BindingNames() {
		assert.False(t, seen[name], name)
		seen[name] = true
	}
}

func TestCompareFields(t *testing.T) {
	fields := append(BindingNames()[1:], "signature")

	report := CompareFields(fields)
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"firstName"}, report.Missing)
	assert.Equal(t, []string{"signature"}, report.Unbound)
	assert.Len(t, report.Bound, len(Bindings)-1)

	assert.True(t, CompareFields(BindingNames()).Complete())
}
