package dto

import (
	"encoding/json"
	"time"
)

// ScanInfo represents a stored scan as listed by the history API.
type ScanInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	State     string    `json:"state"`
	Annotated bool      `json:"annotated"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Classes   []string  `json:"classes"`
}

// MarshalJSON customizes JSON output for ScanInfo to format date and time-of-day.
func (s ScanInfo) MarshalJSON() ([]byte, error) {
	type Alias ScanInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      s.Date.Format("02-01-2006"),
		TimeOfDay: s.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(s),
	})
}
