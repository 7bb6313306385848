package models

import "time"

// Pin is a recorded location with its resolved address and a free-text note.
// JSON field names match the export format so exported files can be imported back.
type Pin struct {
	ID          string    `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	CountryCode string    `json:"countryCode"`
	Date        string    `json:"date"` // Local date, D-M-YYYY
	Time        string    `json:"time"` // Local time, HH:MM
	MapImageURL string    `json:"mapImageUrl"`
	Note        string    `json:"note"`
	Accuracy    float64   `json:"accuracy,omitempty"` // Meters; zero for imported pins without one
	Source      string    `json:"source,omitempty"`   // Provenance of the position fix
	CreatedAt   time.Time `json:"createdAt"`         // Zero for imported pins without one
}

// Pin date and time layouts.
const (
	PinDateLayout = "2-1-2006"
	PinTimeLayout = "15:04"
)
