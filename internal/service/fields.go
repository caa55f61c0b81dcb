package service

import (
	"fmt"
	"sort"
	"time"

	"visa-portal/internal/models"
)

// fieldSetter copies one JSON payload value onto an application. Payloads are
// schema-checked before any setter runs, so type assertions only guard
// against callers that skipped validation.
type fieldSetter func(app *models.Application, v interface{}) error

var applicantFields = map[string]fieldSetter{
	"firstName":              setString(func(a *models.Application) *string { return &a.FirstName }),
	"lastName":               setString(func(a *models.Application) *string { return &a.LastName }),
	"email":                  setString(func(a *models.Application) *string { return &a.Email }),
	"birthDate":              setDate(func(a *models.Application) **time.Time { return &a.BirthDate }),
	"gender":                 setString(func(a *models.Application) *string { return &a.Gender }),
	"passportNumber":         setString(func(a *models.Application) *string { return &a.PassportNumber }),
	"passportIssuingCountry": setString(func(a *models.Application) *string { return &a.PassportIssuingCountry }),
	"passportExpirationDate": setDate(func(a *models.Application) **time.Time { return &a.PassportExpirationDate }),
	"dateOfArrival":          setDate(func(a *models.Application) **time.Time { return &a.DateOfArrival }),
	"dateOfDeparture":        setDate(func(a *models.Application) **time.Time { return &a.DateOfDeparture }),
	"companyName":            setString(func(a *models.Application) *string { return &a.CompanyName }),
	"position":               setString(func(a *models.Application) *string { return &a.Position }),
	"addressLine1":           setString(func(a *models.Application) *string { return &a.AddressLine1 }),
	"addressLine2":           setString(func(a *models.Application) *string { return &a.AddressLine2 }),
	"city":                   setString(func(a *models.Application) *string { return &a.City }),
	"state":                  setString(func(a *models.Application) *string { return &a.State }),
	"postalCode":             setString(func(a *models.Application) *string { return &a.PostalCode }),
	"country":                setString(func(a *models.Application) *string { return &a.Country }),
	"phone":                  setString(func(a *models.Application) *string { return &a.Phone }),
	"fax":                    setString(func(a *models.Application) *string { return &a.Fax }),
	"hotelName":              setString(func(a *models.Application) *string { return &a.HotelName }),
	"hotelConfirmation":      setString(func(a *models.Application) *string { return &a.HotelConfirmation }),
}

// Mailing flags are bookkeeping for the visa desk; applicants never set them.
var adminFields = map[string]fieldSetter{
	"letterMailed":       setBool(func(a *models.Application) *bool { return &a.LetterMailed }),
	"letterMailedDate":   setDate(func(a *models.Application) **time.Time { return &a.LetterMailedDate }),
	"hardCopyMailed":     setBool(func(a *models.Application) *bool { return &a.HardCopyMailed }),
	"hardCopyMailedDate": setDate(func(a *models.Application) **time.Time { return &a.HardCopyMailedDate }),
}

func setString(field func(*models.Application) *string) fieldSetter {
	return func(app *models.Application, v interface{}) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		*field(app) = s
		return nil
	}
}

func setBool(field func(*models.Application) *bool) fieldSetter {
	return func(app *models.Application, v interface{}) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		*field(app) = b
		return nil
	}
}

func setDate(field func(*models.Application) **time.Time) fieldSetter {
	return func(app *models.Application, v interface{}) error {
		if v == nil {
			*field(app) = nil
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected date string, got %T", v)
		}
		t, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return err
		}
		*field(app) = &t
		return nil
	}
}

// applyPayload writes every known key of payload onto app and returns the
// keys it touched.
func applyPayload(app *models.Application, payload map[string]interface{}, allowAdmin bool) ([]string, error) {
	var changed []string
	for key, value := range payload {
		set, ok := applicantFields[key]
		if !ok && allowAdmin {
			set, ok = adminFields[key]
		}
		if !ok {
			continue
		}
		if err := set(app, value); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		changed = append(changed, key)
	}
	sort.Strings(changed)
	return changed, nil
}
