package models

import "time"

// Meeting is an event applicants request visa letters for. Name is unique and
// doubles as the natural key in CSV imports.
type Meeting struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Location  string    `json:"location,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
